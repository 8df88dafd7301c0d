package router

import (
	"fmt"
	"time"
)

// Attempt is the outcome of one profile's read.
type Attempt[T any] struct {
	Profile string
	OK      bool
	Value   T
	Found   bool
	Err     error
	Elapsed time.Duration
}

// Result is the outcome of a read. On success it describes the winning
// profile only; losers are visible in logs and metrics.
type Result[T any] struct {
	OK bool
	// Value is the zero value when OK is false or Found is false.
	Value T
	// Found is false when the query returned no row, or a NULL scalar.
	Found   bool
	Profile string
	Elapsed time.Duration
	// Attempted is the number of profiles sampled.
	Attempted int
	Err       error
}

// WriteAttempt is the outcome of one profile's write.
type WriteAttempt struct {
	Profile      string
	OK           bool
	RowsAffected int64
	LastInsertID int64
	HasInsertID  bool
	// Inserted is set when a self-healing write fell through to INSERT.
	Inserted bool
	Err      error
	Elapsed  time.Duration
}

// FanOutResult holds one WriteAttempt per profile, in profile order.
type FanOutResult struct {
	Results []WriteAttempt
	// Err is set only when no attempt could be made at all.
	Err error
}

func (f FanOutResult) Total() int { return len(f.Results) }

func (f FanOutResult) SuccessCount() int {
	n := 0
	for _, r := range f.Results {
		if r.OK {
			n++
		}
	}
	return n
}

func (f FanOutResult) FailureCount() int { return f.Total() - f.SuccessCount() }

// AllSucceeded is false for an empty result.
func (f FanOutResult) AllSucceeded() bool { return f.Total() > 0 && f.FailureCount() == 0 }

func (f FanOutResult) AnySucceeded() bool { return f.SuccessCount() > 0 }

// AllFailed is true for an empty result, which callers treat as a hard failure.
func (f FanOutResult) AllFailed() bool { return f.SuccessCount() == 0 }

// Failed returns the failed attempts in profile order.
func (f FanOutResult) Failed() []WriteAttempt {
	var out []WriteAttempt
	for _, r := range f.Results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}

// Summary is a short human readable count, e.g. "2/3 profiles succeeded".
func (f FanOutResult) Summary() string {
	if f.Err != nil && f.Total() == 0 {
		return f.Err.Error()
	}
	return fmt.Sprintf("%d/%d profiles succeeded", f.SuccessCount(), f.Total())
}
