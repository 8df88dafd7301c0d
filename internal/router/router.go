// Package router routes statements across every configured database profile.
//
// Reads race the first MaxReadFanOut profiles and return the first success.
// Writes fan out to every profile and report each outcome. Self-healing writes
// run UPDATE and fall back to INSERT per profile when no row matched, so
// replicas that missed earlier writes converge on the same logical row.
//
// No operation returns a Go error for a single profile's failure: failures
// are values inside the returned aggregate.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/profile"
	"airplan/cli/internal/sqlexec"
)

// MaxReadFanOut caps how many profiles a read consults. Profiles past the cap
// are never read from, even when every sampled profile is down.
const MaxReadFanOut = 3

var (
	// ErrNoProfiles is reported when the profile list is empty.
	ErrNoProfiles = apperrors.New(apperrors.NoProfilesConfigured, "no database profiles configured")
	// ErrAllProfilesFailed is reported when every sampled profile failed a read.
	ErrAllProfilesFailed = apperrors.New(apperrors.AllProfilesFailed, "all attempted profiles failed")
)

// ProfileSource supplies the ordered profile list. It is consulted at the
// start of every call.
type ProfileSource interface {
	Profiles(ctx context.Context) ([]profile.Profile, error)
}

// Router executes statements against the profiles of a ProfileSource.
type Router struct {
	source  ProfileSource
	factory sqlexec.Factory
	logger  *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router.
func New(source ProfileSource, factory sqlexec.Factory, opts ...Option) *Router {
	r := &Router{source: source, factory: factory}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Get()
	}
	return r
}

func (r *Router) callLogger(operation, database string) *slog.Logger {
	return r.logger.With("operation", operation, "call_id", uuid.NewString(), "database", database)
}

// profiles loads the current list. An empty list yields ErrNoProfiles.
func (r *Router) profiles(ctx context.Context) ([]profile.Profile, error) {
	ps, err := r.source.Profiles(ctx)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.Unknown {
			err = apperrors.Wrap(apperrors.ProfileStore, "load profiles", err)
		}
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNoProfiles
	}
	return ps, nil
}

func callResultLabel(err error) string {
	if apperrors.KindOf(err) == apperrors.NoProfilesConfigured {
		return metrics.ResultNoProfiles
	}
	return metrics.ResultFailed
}

// attemptError tags err with kind unless it already carries one. Only an
// error caused by ctx ending becomes a cancellation; a driver failure that
// arrives after ctx ended keeps its own kind.
func attemptError(ctx context.Context, name string, kind apperrors.Kind, err error) error {
	if sqlexec.Cancelled(ctx, err) {
		if apperrors.KindOf(err) == apperrors.Cancellation {
			return err
		}
		return apperrors.Wrap(apperrors.Cancellation, "profile "+name, err)
	}
	if k := apperrors.KindOf(err); k != apperrors.Unknown && k != apperrors.Cancellation {
		return err
	}
	return apperrors.Wrap(kind, "profile "+name, err)
}

// recoverAttempt turns a panic inside a per-profile attempt, typically from a
// caller-supplied mapper, into that attempt's error.
func recoverAttempt(name string, errp *error) {
	if v := recover(); v != nil {
		*errp = apperrors.Wrap(apperrors.QueryExecutionFailure, "profile "+name, fmt.Errorf("panic: %v", v))
	}
}

func observe(operation, outcome string, elapsed time.Duration) {
	metrics.RouterAttempts.WithLabelValues(operation, outcome).Inc()
	metrics.RouterAttemptDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
