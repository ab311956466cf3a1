// database/connection.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql" // MariaDB/MySQL driver
	_ "modernc.org/sqlite"           // embedded driver for dev runs and tests

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/utils"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var ErrNotInitialized = errors.New("database connection is not initialized")

// Store wraps the connection pool together with the SQL dialect it speaks.
type Store struct {
	DB     *sql.DB
	driver string
	logger *slog.Logger
}

// InitDB opens the connection pool described by cfg and verifies it with a ping.
// For sqlite, DBName is the file path (":memory:" for an in-process database).
func InitDB(cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	logger = utils.OrNop(logger)
	switch cfg.Driver {
	case DriverSQLite:
		return OpenSQLite(cfg.DBName, logger)
	case "", DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + cfg.Port
	mc.DBName = cfg.DBName
	mc.ParseTime = true

	db, err := sql.Open(DriverMySQL, mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return finishOpen(db, DriverMySQL, logger)
}

// OpenSQLite opens an embedded database. A single connection keeps ":memory:"
// databases alive for the life of the pool.
func OpenSQLite(path string, logger *slog.Logger) (*Store, error) {
	logger = utils.OrNop(logger)
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open(DriverSQLite, "file:"+path+"?_pragma=busy_timeout=5000&_pragma=foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return finishOpen(db, DriverSQLite, logger)
}

func finishOpen(db *sql.DB, driver string, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("database connected", "driver", driver)
	return &Store{DB: db, driver: driver, logger: logger}, nil
}

// Driver returns the dialect in use.
func (s *Store) Driver() string { return s.driver }

// CloseDB closes the connection pool.
func (s *Store) CloseDB() {
	if s != nil && s.DB != nil {
		s.DB.Close()
		s.logger.Info("database connection closed")
	}
}

func (s *Store) ready() error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	return nil
}

// upsertClause returns the dialect-specific tail of an INSERT that updates
// cols when a row with the same conflict key already exists.
func (s *Store) upsertClause(conflictKey string, cols ...string) string {
	clause := ""
	if s.driver == DriverSQLite {
		clause = " ON CONFLICT(" + conflictKey + ") DO UPDATE SET "
		for i, c := range cols {
			if i > 0 {
				clause += ", "
			}
			clause += c + " = excluded." + c
		}
		return clause
	}
	clause = " ON DUPLICATE KEY UPDATE "
	for i, c := range cols {
		if i > 0 {
			clause += ", "
		}
		clause += c + " = VALUES(" + c + ")"
	}
	return clause
}

const dateLayout = "2006-01-02"

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func dateOrNull(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
