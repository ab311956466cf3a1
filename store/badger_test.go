package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerReserveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := openTestBadger(t)

	ok, err := s.Reserve(ctx, "2026-10", "2026-10-19", 5, 10, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	// day ceiling would be exceeded, month would not: neither moves
	ok, err = s.Reserve(ctx, "2026-10", "2026-10-19", 2, 10, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	m, d, err := s.Counters(ctx, "2026-10", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, int64(5), m)
	assert.Equal(t, int64(5), d)

	require.NoError(t, s.Release(ctx, "2026-10", "2026-10-19", 9))
	m, d, err = s.Counters(ctx, "2026-10", "2026-10-19")
	require.NoError(t, err)
	assert.Zero(t, m)
	assert.Zero(t, d)
}

func TestBadgerConcurrentReserveNeverExceedsCeiling(t *testing.T) {
	ctx := context.Background()
	s := openTestBadger(t)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Reserve(ctx, "m", "d", 1, 1000, 20)
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	m, d, err := s.Counters(ctx, "m", "d")
	require.NoError(t, err)
	assert.LessOrEqual(t, d, int64(20))
	assert.Equal(t, int64(granted), d)
	assert.Equal(t, m, d)
}

func TestBadgerCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestBadger(t)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
