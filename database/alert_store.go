// database/alert_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maous26/GG2-sub000/models"
)

// SaveAlert records an alert and its recipients in one transaction.
func (s *Store) SaveAlert(ctx context.Context, a models.Alert) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for alert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO alerts (id, deal_id, status, error, recipient_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.DealID, a.Status, sql.NullString{String: a.Error, Valid: a.Error != ""}, len(a.Recipients), a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
	}

	if len(a.Recipients) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO alert_recipients (alert_id, user_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare alert recipient insert statement: %w", err)
		}
		defer stmt.Close()

		seen := make(map[string]struct{}, len(a.Recipients))
		for _, userID := range a.Recipients {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			if _, err := stmt.ExecContext(ctx, a.ID, userID); err != nil {
				return fmt.Errorf("failed to insert recipient %s for alert %s: %w", userID, a.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alert %s: %w", a.ID, err)
	}
	s.logger.Debug("alert saved", "alert_id", a.ID, "deal_id", a.DealID, "recipients", len(a.Recipients), "status", a.Status)
	return nil
}

// AlertsForDeal returns every alert recorded for a deal, recipients included.
func (s *Store) AlertsForDeal(ctx context.Context, dealID string) ([]models.Alert, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, deal_id, status, error, created_at
		FROM alerts WHERE deal_id = ? ORDER BY created_at`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for deal %s: %w", dealID, err)
	}
	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var errText sql.NullString
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.DealID, &a.Status, &errText, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Error = errText.String
		a.CreatedAt = fromUnix(createdAt)
		alerts = append(alerts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}

	// recipients are loaded after the alert cursor is closed so a
	// single-connection pool never has two open result sets
	for i := range alerts {
		recipients, err := s.alertRecipients(ctx, alerts[i].ID)
		if err != nil {
			return nil, err
		}
		alerts[i].Recipients = recipients
	}
	return alerts, nil
}

func (s *Store) alertRecipients(ctx context.Context, alertID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT user_id FROM alert_recipients WHERE alert_id = ? ORDER BY user_id`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients for alert %s: %w", alertID, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
