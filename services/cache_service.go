// services/cache_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/store"
	"github.com/maous26/GG2-sub000/utils"
)

// cacheEntry is the stored form of one query result.
type cacheEntry struct {
	Fingerprint string                   `json:"fingerprint"`
	Payload     []models.PricedItinerary `json:"payload"`
	ExpiresAt   time.Time                `json:"expiresAt"`
}

// CacheService is the short-TTL result cache. Entries are written whole and
// a read at or past expiresAt is a miss.
type CacheService struct {
	backend store.CacheStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewCacheService(backend store.CacheStore, ttl time.Duration, logger *slog.Logger) *CacheService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CacheService{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  utils.OrNop(logger).With("component", "cache"),
	}
}

// WithClock replaces the clock used for expiry checks.
func (c *CacheService) WithClock(now func() time.Time) *CacheService {
	c.now = now
	return c
}

// TTL is the lifetime given to new entries.
func (c *CacheService) TTL() time.Duration { return c.ttl }

// Get returns the cached itineraries for fingerprint. A backend error is
// logged and treated as a miss.
func (c *CacheService) Get(ctx context.Context, fingerprint string) ([]models.PricedItinerary, bool) {
	raw, err := c.backend.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			cacheLookupsTotal.WithLabelValues("error").Inc()
			c.logger.Warn("cache read failed", "fingerprint", fingerprint, "error", err)
			return nil, false
		}
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.Fingerprint != fingerprint {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("dropping unreadable cache entry", "fingerprint", fingerprint)
		_ = c.backend.Delete(ctx, fingerprint)
		return nil, false
	}
	if !c.now().Before(e.ExpiresAt) {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		_ = c.backend.Delete(ctx, fingerprint)
		return nil, false
	}

	cacheLookupsTotal.WithLabelValues("hit").Inc()
	c.logger.Debug("cache hit", "fingerprint", fingerprint, "itineraries", len(e.Payload))
	if e.Payload == nil {
		e.Payload = []models.PricedItinerary{}
	}
	return e.Payload, true
}

// Put stores payload under fingerprint for the configured TTL.
func (c *CacheService) Put(ctx context.Context, fingerprint string, payload []models.PricedItinerary) error {
	if payload == nil {
		payload = []models.PricedItinerary{}
	}
	e := cacheEntry{Fingerprint: fingerprint, Payload: payload, ExpiresAt: c.now().Add(c.ttl)}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, fingerprint, raw, c.ttl)
}
