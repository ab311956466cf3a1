// store/memory.go
package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. Used for dev runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
	cache    map[string]memEntry
	now      func() time.Time
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]int64),
		cache:    make(map[string]memEntry),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for cache expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Reserve(_ context.Context, monthKey, dayKey string, n, monthCap, dayCap int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.counters[counterPrefix+monthKey]
	d := s.counters[counterPrefix+dayKey]
	if m+n > monthCap || d+n > dayCap {
		return false, nil
	}
	s.counters[counterPrefix+monthKey] = m + n
	s.counters[counterPrefix+dayKey] = d + n
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, monthKey, dayKey string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range []string{counterPrefix + monthKey, counterPrefix + dayKey} {
		v := s.counters[k] - n
		if v < 0 {
			v = 0
		}
		s.counters[k] = v
	}
	return nil
}

func (s *MemoryStore) Counters(_ context.Context, monthKey, dayKey string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counterPrefix+monthKey], s.counters[counterPrefix+dayKey], nil
}

// SetCounter seeds a counter. Tests use it to start from a known usage.
func (s *MemoryStore) SetCounter(key string, v int64) {
	s.mu.Lock()
	s.counters[counterPrefix+key] = v
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[cachePrefix+key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.cache, cachePrefix+key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.cache[cachePrefix+key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.cache, cachePrefix+key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
