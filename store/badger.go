// store/badger.go
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for the embedded store.
type BadgerConfig struct {
	// Path is ignored when InMemory is true.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
	// GCInterval of 0 disables value log GC.
	GCInterval time.Duration
}

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (creating if needed) the badger store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, logger: cfg.Logger, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC(cfg.GCInterval)
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

func (s *BadgerStore) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

const maxConflictRetries = 20

func readCounter(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("counter %s: bad length %d", key, len(val))
		}
		v = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return v, err
}

func writeCounter(txn *badger.Txn, key string, v int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return txn.Set([]byte(key), buf)
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger update: %w: %v", ErrConflict, err)
}

func (s *BadgerStore) Reserve(ctx context.Context, monthKey, dayKey string, n, monthCap, dayCap int64) (bool, error) {
	mk, dk := counterPrefix+monthKey, counterPrefix+dayKey
	var ok bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		ok = false
		m, err := readCounter(txn, mk)
		if err != nil {
			return err
		}
		d, err := readCounter(txn, dk)
		if err != nil {
			return err
		}
		if m+n > monthCap || d+n > dayCap {
			return nil
		}
		if err := writeCounter(txn, mk, m+n); err != nil {
			return err
		}
		if err := writeCounter(txn, dk, d+n); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *BadgerStore) Release(ctx context.Context, monthKey, dayKey string, n int64) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{counterPrefix + monthKey, counterPrefix + dayKey} {
			v, err := readCounter(txn, k)
			if err != nil {
				return err
			}
			v -= n
			if v < 0 {
				v = 0
			}
			if err := writeCounter(txn, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Counters(_ context.Context, monthKey, dayKey string) (int64, int64, error) {
	var m, d int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if m, err = readCounter(txn, counterPrefix+monthKey); err != nil {
			return err
		}
		d, err = readCounter(txn, counterPrefix+dayKey)
		return err
	})
	return m, d, err
}

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cachePrefix+key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cachePrefix + key))
	})
}
