// database/user_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// UpsertUser inserts a user or refreshes its segment and airport preferences.
func (s *Store) UpsertUser(ctx context.Context, u models.UserRef, active bool, createdAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	airports := strings.Join(utils.NormalizeAirportList(u.DepartureAirports), ",")
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (id, email, segment, departure_airports, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`+s.upsertClause("id", "email", "segment", "departure_airports", "active"),
		u.ID, u.Email, string(u.Segment), airports, active, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// FindUsers returns active users in the requested segments whose airport
// preferences include q.DepartureAirport (users with no preference always match).
// Results are ordered by signup time and capped at q.Limit when positive.
func (s *Store) FindUsers(ctx context.Context, q models.UserQuery) ([]models.UserRef, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(q.Segments) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(q.Segments))
	args := make([]interface{}, 0, len(q.Segments)+1)
	args = append(args, true)
	for i, seg := range q.Segments {
		placeholders[i] = "?"
		args = append(args, string(seg))
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, email, segment, departure_airports FROM users
		WHERE active = ? AND segment IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	airport := utils.NormalizeAirportCode(q.DepartureAirport)
	var users []models.UserRef
	for rows.Next() {
		var u models.UserRef
		var segment string
		var airports sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &segment, &airports); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Segment = models.Segment(segment)
		u.DepartureAirports = utils.SplitAirportList(airports.String)
		if airport != "" && !u.AcceptsAirport(airport) {
			continue
		}
		users = append(users, u)
		if q.Limit > 0 && len(users) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}
