// database/price_history_store.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/maous26/GG2-sub000/models"
)

// RecordPrices appends observed prices in a single transaction.
func (s *Store) RecordPrices(ctx context.Context, points []models.PricePoint) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for price history: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO price_history
		(origin, destination, departure_date, price, currency, airline, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare price history insert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.Origin, p.Destination, p.DepartureDate.Format(dateLayout),
			p.Price, p.Currency, p.Airline, p.ObservedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert price point for %s-%s: %w", p.Origin, p.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price history: %w", err)
	}
	return nil
}

// PriceHistory returns the prices observed for a route since the given time, oldest first.
func (s *Store) PriceHistory(ctx context.Context, origin, destination string, since time.Time) ([]float64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT price FROM price_history
		WHERE origin = ? AND destination = ? AND observed_at >= ?
		ORDER BY observed_at`, origin, destination, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s-%s: %w", origin, destination, err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan price history row: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// PrunePriceHistory deletes observations older than before and returns how many went.
func (s *Store) PrunePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM price_history WHERE observed_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", err)
	}
	return res.RowsAffected()
}
