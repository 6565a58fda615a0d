// Package poll replaces busy-wait loops with a bounded, cancellable poll
// that reports how it ended.
package poll

import (
	"context"
	"time"
)

// Outcome is what a check reports after one look.
type Outcome int

const (
	// Pending keeps polling.
	Pending Outcome = iota
	// Done stops polling successfully.
	Done
	// Abort stops polling without success.
	Abort
)

// Result tells how Until ended.
type Result int

const (
	Succeeded Result = iota
	TimedOut
	Aborted
	Canceled
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "succeeded"
	case TimedOut:
		return "timed out"
	case Aborted:
		return "aborted"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// SleepFunc pauses for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config bounds a poll.
type Config struct {
	// Interval between checks.
	Interval time.Duration
	// Attempts is the number of pauses allowed before giving up.
	Attempts int
	// Sleep defaults to Sleep.
	Sleep SleepFunc
}

// Until calls check, pausing Interval between calls, until it reports Done
// or Abort, ctx ends, or Attempts pauses have been made. The first check
// happens immediately, so a condition that already holds costs no pause.
func Until(ctx context.Context, cfg Config, check func(attempt int) Outcome) Result {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return Canceled
		}

		switch check(attempt) {
		case Done:
			return Succeeded
		case Abort:
			return Aborted
		}

		if attempt >= cfg.Attempts {
			return TimedOut
		}
		if err := sleep(ctx, cfg.Interval); err != nil {
			return Canceled
		}
	}
}

// Sleep waits for d, returning ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptsFor returns how many pauses of interval fit in timeout.
func AttemptsFor(timeout, interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(timeout / interval)
}
