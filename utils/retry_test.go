package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permanentErr struct{}

func (permanentErr) Error() string { return "bad request" }
func (permanentErr) Retryable() bool { return false }

func TestRetryStateTransitions(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	st := p.Start()
	assert.Equal(t, PhaseReady, st.Phase())

	assert.Equal(t, PhaseBackoff, st.Next(errors.New("boom")))
	assert.Equal(t, time.Second, st.Delay())
	st.Resume()
	assert.Equal(t, PhaseReady, st.Phase())

	assert.Equal(t, PhaseBackoff, st.Next(errors.New("boom")))
	assert.Equal(t, 2*time.Second, st.Delay())
	st.Resume()

	assert.Equal(t, PhaseExhausted, st.Next(errors.New("boom")))
	assert.True(t, st.Done())
	assert.Equal(t, 3, st.Attempt())

	// terminal states are sticky
	assert.Equal(t, PhaseExhausted, st.Next(nil))
}

func TestRetryStatePermanentErrorAborts(t *testing.T) {
	st := DefaultRetryPolicy().Start()
	assert.Equal(t, PhaseAborted, st.Next(permanentErr{}))
	assert.Equal(t, 1, st.Attempt())
}

func TestRetryBackoffCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	st := p.Start()
	for i := 0; i < 4; i++ {
		st.Next(errors.New("x"))
		st.Resume()
	}
	assert.Equal(t, 3*time.Second, st.Delay())
}

func TestRetryDo(t *testing.T) {
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Multiplier: 2}

	calls := 0
	st, err := p.Do(context.Background(), sleep, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, st.Phase())
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, slept)

	slept = nil
	calls = 0
	st, err = p.Do(context.Background(), sleep, func(int) error {
		calls++
		return errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, PhaseExhausted, st.Phase())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)
}

func TestRetryDoStopsOnCancelledSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := DefaultRetryPolicy().Do(ctx, SleepContext, func(int) error { return errors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseAborted, st.Phase())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(permanentErr{}))
	assert.True(t, IsRetryable(errors.New("timeout")))
}
