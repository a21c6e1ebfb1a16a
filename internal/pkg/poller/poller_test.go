package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock fires immediately and records every requested wait.
type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func scripted(statuses ...string) CheckFunc {
	i := 0
	return func(ctx context.Context) (string, error) {
		if i >= len(statuses) {
			return StatusPending, nil
		}
		s := statuses[i]
		i++
		if s == "err" {
			return "", errors.New("connection reset")
		}
		return s, nil
	}
}

func TestPolicy_Run(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []string
		wantOutcome  Outcome
		wantAttempts int
	}{
		{name: "confirmed on third poll", statuses: []string{"pending", "pending", "done"}, wantOutcome: OutcomeConfirmed, wantAttempts: 3},
		{name: "transient errors are retried", statuses: []string{"err", "err", "done"}, wantOutcome: OutcomeConfirmed, wantAttempts: 3},
		{name: "failed invoice stops polling", statuses: []string{"pending", "failed"}, wantOutcome: OutcomeFailed, wantAttempts: 2},
		{name: "expired invoice stops polling", statuses: []string{"expired"}, wantOutcome: OutcomeFailed, wantAttempts: 1},
		{name: "budget exhausted", statuses: nil, wantOutcome: OutcomeTimedOut, wantAttempts: DefaultMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{}
			p := DefaultPolicy()
			p.Clock = clock

			res, err := p.Run(context.Background(), scripted(tt.statuses...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Len(t, clock.waits, tt.wantAttempts)
			for _, w := range clock.waits {
				assert.Equal(t, 5*time.Second, w)
			}
		})
	}
}

func TestPolicy_BudgetMatchesStreamTimeout(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 10*time.Minute, time.Duration(p.MaxAttempts)*p.Interval)
}

func TestPolicy_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Interval: time.Hour, MaxAttempts: 3}
	res, err := p.Run(ctx, scripted("done"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Attempts)
}

func TestOutcome_UIState(t *testing.T) {
	assert.Equal(t, "confirmed", OutcomeConfirmed.UIState())
	assert.Equal(t, "timed_out", OutcomeTimedOut.UIState())
	assert.Equal(t, "timed_out", OutcomeFailed.UIState())
}
