// utils/retry.go
package utils

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy describes how failed upstream calls are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy is three attempts with 1s, 2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
}

// Retryable is implemented by errors that know whether another attempt may succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is worth another attempt. An error's own
// Retryable classification wins; otherwise context errors are final and
// anything else is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// RetryPhase is the state of a RetryState.
type RetryPhase int

const (
	PhaseReady RetryPhase = iota
	PhaseBackoff
	PhaseSucceeded
	PhaseExhausted
	PhaseAborted
)

func (p RetryPhase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseBackoff:
		return "backoff"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseExhausted:
		return "exhausted"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}

// RetryState walks a single call through its attempts.
//
//	Ready --ok--> Succeeded
//	Ready --retryable err, attempts left--> Backoff --wait--> Ready
//	Ready --retryable err, none left--> Exhausted
//	Ready --permanent err--> Aborted
type RetryState struct {
	policy  RetryPolicy
	phase   RetryPhase
	attempt int
	delay   time.Duration
	lastErr error
}

// Start returns a state ready for the first attempt.
func (p RetryPolicy) Start() *RetryState {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return &RetryState{policy: p, phase: PhaseReady}
}

func (s *RetryState) Phase() RetryPhase { return s.phase }
func (s *RetryState) Attempt() int { return s.attempt }
func (s *RetryState) Delay() time.Duration { return s.delay }
func (s *RetryState) LastErr() error { return s.lastErr }

// Done reports whether the state is terminal.
func (s *RetryState) Done() bool {
	return s.phase == PhaseSucceeded || s.phase == PhaseExhausted || s.phase == PhaseAborted
}

// Next records the outcome of the attempt just made and returns the new phase.
func (s *RetryState) Next(err error) RetryPhase {
	if s.Done() {
		return s.phase
	}
	s.attempt++
	if err == nil {
		s.phase = PhaseSucceeded
		s.lastErr = nil
		return s.phase
	}
	s.lastErr = err
	if !IsRetryable(err) {
		s.phase = PhaseAborted
		return s.phase
	}
	if s.attempt >= s.policy.MaxAttempts {
		s.phase = PhaseExhausted
		return s.phase
	}
	s.delay = s.backoff()
	s.phase = PhaseBackoff
	return s.phase
}

func (s *RetryState) backoff() time.Duration {
	d := float64(s.policy.BaseDelay)
	for i := 1; i < s.attempt; i++ {
		d *= s.policy.Multiplier
	}
	delay := time.Duration(d)
	if s.policy.MaxDelay > 0 && delay > s.policy.MaxDelay {
		delay = s.policy.MaxDelay
	}
	return delay
}

// Resume moves a Backoff state back to Ready once the delay has been waited.
func (s *RetryState) Resume() {
	if s.phase == PhaseBackoff {
		s.phase = PhaseReady
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// The final state is returned alongside the last error.
func (p RetryPolicy) Do(ctx context.Context, sleep Sleeper, fn func(attempt int) error) (*RetryState, error) {
	if sleep == nil {
		sleep = SleepContext
	}
	st := p.Start()
	for !st.Done() {
		err := fn(st.attempt + 1)
		if st.Next(err) != PhaseBackoff {
			break
		}
		if serr := sleep(ctx, st.delay); serr != nil {
			st.lastErr = serr
			st.phase = PhaseAborted
			break
		}
		st.Resume()
	}
	return st, st.lastErr
}
