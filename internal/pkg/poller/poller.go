// Package poller implements the bounded status-polling fallback used when the
// real-time stream is unavailable.
package poller

import (
	"context"
	"time"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 120
)

// Status values reported by the poll endpoint.
const (
	StatusDone    = "done"
	StatusPending = "pending"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

// Outcome is the terminal result of a wait.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota + 1
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UIState collapses an outcome to what a paying user is shown. Anything but
// a confirmation reads as "timed out".
func (o Outcome) UIState() string {
	if o == OutcomeConfirmed {
		return "confirmed"
	}
	return "timed_out"
}

// Clock abstracts waiting so tests never sleep.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock waits on the wall clock.
var RealClock Clock = realClock{}

// CheckFunc reads the current status once. Errors are treated as transient.
type CheckFunc func(ctx context.Context) (string, error)

// Policy polls every Interval for at most MaxAttempts reads.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
}

func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts, Clock: RealClock}
}

// Result describes how a Run ended.
type Result struct {
	Outcome  Outcome
	Attempts int
	LastErr  error
}

// Run polls until the status is terminal or the attempt budget is spent. The
// first read happens after one interval. Cancelling ctx returns its error.
func (p Policy) Run(ctx context.Context, check CheckFunc) (Result, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var res Result
	for res.Attempts < maxAttempts {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-clock.After(interval):
		}

		res.Attempts++
		status, err := check(ctx)
		if err != nil {
			res.LastErr = err
			continue
		}
		switch status {
		case StatusDone:
			res.Outcome = OutcomeConfirmed
			return res, nil
		case StatusFailed, StatusExpired:
			res.Outcome = OutcomeFailed
			return res, nil
		}
	}
	res.Outcome = OutcomeTimedOut
	return res, nil
}
