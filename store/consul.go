// store/consul.go
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/maous26/GG2-sub000/utils"
)

// ConsulConfig holds configuration for the Consul-backed store.
type ConsulConfig struct {
	Addr   string
	Prefix string
	Logger *slog.Logger
	// SweepInterval of 0 disables the expired cache sweep.
	SweepInterval time.Duration
}

// ConsulStore shares counters and cache entries between scanner instances
// through the Consul KV store.
type ConsulStore struct {
	cli    *consulapi.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
	stop   chan struct{}
	done   chan struct{}
}

func NewConsulStore(cfg ConsulConfig) (*ConsulStore, error) {
	ccfg := consulapi.DefaultConfig()
	if cfg.Addr != "" {
		ccfg.Address = cfg.Addr
	}
	cli, err := consulapi.NewClient(ccfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	s := &ConsulStore{
		cli:    cli,
		prefix: cfg.Prefix,
		logger: utils.OrNop(cfg.Logger),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go s.runSweep(cfg.SweepInterval)
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *ConsulStore) runSweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := s.Sweep(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("consul cache sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("consul cache sweep", "deleted", n)
			}
		}
	}
}

func (s *ConsulStore) Close() error {
	close(s.stop)
	<-s.done
	return nil
}

type kvCounter struct {
	key   string
	value int64
	index uint64
}

func (s *ConsulStore) readCounter(ctx context.Context, key string) (kvCounter, error) {
	full := s.prefix + counterPrefix + key
	pair, _, err := s.cli.KV().Get(full, (&consulapi.QueryOptions{RequireConsistent: true}).WithContext(ctx))
	if err != nil {
		return kvCounter{}, err
	}
	c := kvCounter{key: full}
	if pair == nil {
		return c, nil
	}
	if len(pair.Value) != 8 {
		return kvCounter{}, fmt.Errorf("counter %s: bad length %d", full, len(pair.Value))
	}
	c.value = int64(binary.BigEndian.Uint64(pair.Value))
	c.index = pair.ModifyIndex
	return c, nil
}

func casOp(c kvCounter, v int64) *consulapi.TxnOp {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return &consulapi.TxnOp{KV: &consulapi.KVTxnOp{
		Verb:  consulapi.KVCAS,
		Key:   c.key,
		Value: buf,
		Index: c.index,
	}}
}

const maxCASRetries = 20

// casBoth reads both counters, lets apply compute the new values and commits
// them in one transaction guarded by the read indexes. A lost race re-reads.
func (s *ConsulStore) casBoth(ctx context.Context, monthKey, dayKey string, apply func(m, d int64) (int64, int64, bool)) (bool, error) {
	for i := 0; i < maxCASRetries; i++ {
		m, err := s.readCounter(ctx, monthKey)
		if err != nil {
			return false, err
		}
		d, err := s.readCounter(ctx, dayKey)
		if err != nil {
			return false, err
		}
		nm, nd, ok := apply(m.value, d.value)
		if !ok {
			return false, nil
		}
		ops := consulapi.TxnOps{casOp(m, nm), casOp(d, nd)}
		committed, _, _, err := s.cli.Txn().Txn(ops, (&consulapi.QueryOptions{}).WithContext(ctx))
		if err != nil {
			return false, err
		}
		if committed {
			return true, nil
		}
	}
	return false, fmt.Errorf("consul counters %s/%s: %w", monthKey, dayKey, ErrConflict)
}

func (s *ConsulStore) Reserve(ctx context.Context, monthKey, dayKey string, n, monthCap, dayCap int64) (bool, error) {
	return s.casBoth(ctx, monthKey, dayKey, func(m, d int64) (int64, int64, bool) {
		if m+n > monthCap || d+n > dayCap {
			return m, d, false
		}
		return m + n, d + n, true
	})
}

func (s *ConsulStore) Release(ctx context.Context, monthKey, dayKey string, n int64) error {
	_, err := s.casBoth(ctx, monthKey, dayKey, func(m, d int64) (int64, int64, bool) {
		return max(m-n, 0), max(d-n, 0), true
	})
	return err
}

func (s *ConsulStore) Counters(ctx context.Context, monthKey, dayKey string) (int64, int64, error) {
	m, err := s.readCounter(ctx, monthKey)
	if err != nil {
		return 0, 0, err
	}
	d, err := s.readCounter(ctx, dayKey)
	if err != nil {
		return 0, 0, err
	}
	return m.value, d.value, nil
}

// Consul KV has no per-key TTL, so cache values are wrapped with their own
// deadline. Reads treat expired entries as absent and Sweep deletes them.
type consulEntry struct {
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Value     []byte `json:"value"`
}

func (e consulEntry) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixNano() >= e.ExpiresAt
}

func (s *ConsulStore) Get(ctx context.Context, key string) ([]byte, error) {
	full := s.prefix + cachePrefix + key
	pair, _, err := s.cli.KV().Get(full, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, ErrNotFound
	}
	var e consulEntry
	if err := json.Unmarshal(pair.Value, &e); err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", full, err)
	}
	if e.expired(s.now()) {
		s.deleteIfUnchanged(ctx, pair)
		return nil, ErrNotFound
	}
	return e.Value, nil
}

func (s *ConsulStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := consulEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = s.now().Add(ttl).UnixNano()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.cli.KV().Put(&consulapi.KVPair{Key: s.prefix + cachePrefix + key, Value: raw}, (&consulapi.WriteOptions{}).WithContext(ctx))
	return err
}

func (s *ConsulStore) Delete(ctx context.Context, key string) error {
	_, err := s.cli.KV().Delete(s.prefix+cachePrefix+key, (&consulapi.WriteOptions{}).WithContext(ctx))
	return err
}

// Sweep deletes expired and unreadable cache entries and returns how many
// were removed. Entries rewritten since the listing are left alone.
func (s *ConsulStore) Sweep(ctx context.Context) (int, error) {
	pairs, _, err := s.cli.KV().List(s.prefix+cachePrefix, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	now := s.now()
	deleted := 0
	for _, pair := range pairs {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		if strings.HasSuffix(pair.Key, "/") {
			continue
		}
		var e consulEntry
		if err := json.Unmarshal(pair.Value, &e); err == nil && !e.expired(now) {
			continue
		}
		if s.deleteIfUnchanged(ctx, pair) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *ConsulStore) deleteIfUnchanged(ctx context.Context, pair *consulapi.KVPair) bool {
	ok, _, err := s.cli.KV().DeleteCAS(pair, (&consulapi.WriteOptions{}).WithContext(ctx))
	if err != nil {
		s.logger.Warn("failed to delete expired cache entry", "key", pair.Key, "error", err)
		return false
	}
	return ok
}
