// store/store.go
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned when an atomic update kept losing races.
	ErrConflict = errors.New("store: too much write contention")
)

// CounterStore holds the shared usage counters for the call budget.
type CounterStore interface {
	// Reserve adds n to both counters if neither would exceed its ceiling.
	// Either both counters move or neither does.
	Reserve(ctx context.Context, monthKey, dayKey string, n, monthCap, dayCap int64) (bool, error)
	// Release subtracts n from both counters, never going below zero.
	Release(ctx context.Context, monthKey, dayKey string, n int64) error
	// Counters returns the current values, 0 for absent keys.
	Counters(ctx context.Context, monthKey, dayKey string) (month, day int64, err error)
}

// CacheStore is a byte-level key/value cache with best-effort expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store is what the services need from the shared backend.
type Store interface {
	CounterStore
	CacheStore
	Close() error
}

const (
	counterPrefix = "budget/"
	cachePrefix   = "cache/"
)
