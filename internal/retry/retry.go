// Package retry repeats writes that every profile rejected.
//
// A fan-out write that reached at least one profile is accepted and is never
// repeated here; repeating it would apply the mutation twice on the profiles
// that took it. Only a write that failed everywhere is retried, with
// exponential backoff, until it reaches some profile or the policy gives up.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/router"
)

// Policy bounds retries. Retries is the number of extra attempts after the
// first one; zero disables retrying.
type Policy struct {
	Retries         int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns a policy with the given number of retries.
func DefaultPolicy(retries int) Policy {
	return Policy{
		Retries:         retries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(p.Retries, 0))), ctx)
}

var errAllFailed = errors.New("write failed on every profile")

// Write runs fn and repeats it while its result is AllFailed. The last
// result is returned. Calls that failed before reaching any profile, such as
// an empty profile list, are not retried.
func Write(ctx context.Context, p Policy, fn func(ctx context.Context) router.FanOutResult) router.FanOutResult {
	var last router.FanOutResult
	attempts := 0

	_ = backoff.Retry(func() error {
		attempts++
		if attempts > 1 {
			metrics.WriteRetries.Inc()
			logging.Debug("retrying write", "attempt", attempts)
		}
		last = fn(ctx)
		switch {
		case last.Err != nil:
			return backoff.Permanent(last.Err)
		case last.AllFailed() && ctx.Err() == nil:
			return errAllFailed
		case last.AllFailed():
			return backoff.Permanent(apperrors.Wrap(apperrors.Cancellation, "write cancelled", ctx.Err()))
		}
		return nil
	}, p.backOff(ctx))

	if attempts > 1 {
		logging.Info("write retried", "attempts", attempts, "result", last.Summary())
	}
	return last
}
