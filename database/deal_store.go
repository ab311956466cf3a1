// database/deal_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maous26/GG2-sub000/models"
)

const dealColumns = `id, origin, destination, tier, airline, cabin, stops, currency,
	current_price, original_price_estimate, discount_percentage, validation_score,
	threshold_pct, reasoning, outlier, departure_date, return_date, deep_link,
	detected_at, valid_until`

// SaveDeal inserts a newly detected deal. Deals are never updated afterwards.
func (s *Store) SaveDeal(ctx context.Context, d models.Deal) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO deals (`+dealColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Origin, d.Destination, d.Tier, d.Airline, d.Cabin, d.Stops, d.Currency,
		d.CurrentPrice, d.OriginalPriceEstimate, d.DiscountPercentage, d.ValidationScore,
		d.Threshold, d.Reasoning, d.Outlier, d.DepartureDate.Format(dateLayout), dateOrNull(d.ReturnDate), d.DeepLink,
		d.DetectedAt.Unix(), d.ValidUntil.Unix(),
	)
	if err != nil {
		s.logger.Error("failed to save deal", "deal_id", d.ID, "route", d.Origin+"-"+d.Destination, "error", err)
		return fmt.Errorf("failed to save deal %s: %w", d.ID, err)
	}
	return nil
}

// ActiveDeals returns deals still valid at now, best discount first.
func (s *Store) ActiveDeals(ctx context.Context, now time.Time, limit int) ([]models.Deal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+dealColumns+` FROM deals
		WHERE valid_until > ? ORDER BY discount_percentage DESC, detected_at DESC LIMIT ?`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active deals: %w", err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

// DealsForRoute returns the deals detected for a route since the given time.
func (s *Store) DealsForRoute(ctx context.Context, origin, destination string, since time.Time) ([]models.Deal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+dealColumns+` FROM deals
		WHERE origin = ? AND destination = ? AND detected_at >= ?
		ORDER BY detected_at DESC`, origin, destination, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query deals for %s-%s: %w", origin, destination, err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

func scanDeals(rows *sql.Rows) ([]models.Deal, error) {
	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		var reasoning, deepLink, returnDate sql.NullString
		var departure string
		var detectedAt, validUntil int64
		if err := rows.Scan(
			&d.ID, &d.Origin, &d.Destination, &d.Tier, &d.Airline, &d.Cabin, &d.Stops, &d.Currency,
			&d.CurrentPrice, &d.OriginalPriceEstimate, &d.DiscountPercentage, &d.ValidationScore,
			&d.Threshold, &reasoning, &d.Outlier, &departure, &returnDate, &deepLink,
			&detectedAt, &validUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		d.Reasoning = reasoning.String
		d.DeepLink = deepLink.String
		d.DepartureDate, _ = time.Parse(dateLayout, departure)
		if returnDate.Valid {
			if rt, err := time.Parse(dateLayout, returnDate.String); err == nil {
				d.ReturnDate = &rt
			}
		}
		d.DetectedAt = fromUnix(detectedAt)
		d.ValidUntil = fromUnix(validUntil)
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}
	return deals, nil
}
