package router

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/profile"
	"airplan/cli/internal/sqlexec"
)

// Mapper converts the current row into a T. Mappers run concurrently for
// different profiles and must not share mutable state.
type Mapper[T any] func(row sqlexec.Row) (T, error)

// readFunc runs a query on an open connection and reports the payload and
// whether a row was found.
type readFunc[T any] func(ctx context.Context, conn sqlexec.Conn) (T, bool, error)

// ReadOne returns the first row of query mapped by mapper, from whichever
// sampled profile answers first. No row is a success with Found false.
func ReadOne[T any](ctx context.Context, r *Router, database, query string, params sqlexec.Params, mapper Mapper[T]) Result[T] {
	return race(ctx, r, "read_one", database, func(ctx context.Context, conn sqlexec.Conn) (T, bool, error) {
		var zero T
		rows, err := conn.Query(ctx, query, params)
		if err != nil {
			return zero, false, err
		}
		defer rows.Close()

		if !rows.Next() {
			return zero, false, rows.Err()
		}
		v, err := mapper(rows)
		if err != nil {
			return zero, false, err
		}
		return v, true, nil
	})
}

// ReadMany returns every row of query mapped by mapper. An empty result is a
// success with Found false and a nil slice.
func ReadMany[T any](ctx context.Context, r *Router, database, query string, params sqlexec.Params, mapper Mapper[T]) Result[[]T] {
	return race(ctx, r, "read_many", database, func(ctx context.Context, conn sqlexec.Conn) ([]T, bool, error) {
		rows, err := conn.Query(ctx, query, params)
		if err != nil {
			return nil, false, err
		}
		defer rows.Close()

		var out []T
		for rows.Next() {
			v, err := mapper(rows)
			if err != nil {
				return nil, false, err
			}
			out = append(out, v)
		}
		if err := rows.Err(); err != nil {
			return nil, false, err
		}
		return out, len(out) > 0, nil
	})
}

// ReadScalar returns the first column of the first row converted to T.
// No row and a NULL value are both successes with Found false.
func ReadScalar[T any](ctx context.Context, r *Router, database, query string, params sqlexec.Params) Result[T] {
	return race(ctx, r, "read_scalar", database, func(ctx context.Context, conn sqlexec.Conn) (T, bool, error) {
		var zero T
		rows, err := conn.Query(ctx, query, params)
		if err != nil {
			return zero, false, err
		}
		defer rows.Close()

		if !rows.Next() {
			return zero, false, rows.Err()
		}
		var v sql.Null[T]
		if err := rows.Scan(&v); err != nil {
			return zero, false, err
		}
		return v.V, v.Valid, nil
	})
}

func race[T any](ctx context.Context, r *Router, operation, database string, run readFunc[T]) Result[T] {
	start := time.Now()
	log := r.callLogger(operation, database)

	ps, err := r.profiles(ctx)
	if err != nil {
		log.Error("read not attempted", "error", err)
		metrics.RouterCalls.WithLabelValues(operation, callResultLabel(err)).Inc()
		return Result[T]{Err: err, Elapsed: time.Since(start)}
	}

	sample := ps[:min(MaxReadFanOut, len(ps))]
	if len(ps) > len(sample) {
		log.Debug("read sample capped", "configured", len(ps), "sampled", len(sample))
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so attempts still running after a winner is chosen can finish
	// without a reader.
	attempts := make(chan Attempt[T], len(sample))
	for _, p := range sample {
		go func() {
			attempts <- readAttempt(raceCtx, ctx, log, operation, p, database, r.factory, run)
		}()
	}

	var failures *multierror.Error
	for range sample {
		a := <-attempts
		if a.OK {
			cancel()
			log.Debug("read answered", "profile", a.Profile, "elapsed", a.Elapsed, "found", a.Found)
			metrics.RouterCalls.WithLabelValues(operation, metrics.ResultOK).Inc()
			return Result[T]{
				OK:        true,
				Value:     a.Value,
				Found:     a.Found,
				Profile:   a.Profile,
				Elapsed:   time.Since(start),
				Attempted: len(sample),
			}
		}
		failures = multierror.Append(failures, fmt.Errorf("%s: %w", a.Profile, a.Err))
	}

	metrics.RouterCalls.WithLabelValues(operation, metrics.ResultFailed).Inc()
	if ctx.Err() != nil {
		log.Debug("read cancelled by caller", "error", ctx.Err())
		return Result[T]{
			Err:       apperrors.Wrap(apperrors.Cancellation, "read cancelled", ctx.Err()),
			Elapsed:   time.Since(start),
			Attempted: len(sample),
		}
	}
	log.Error("all sampled profiles failed", "attempted", len(sample), "errors", logging.Mask(failures.Error()))
	return Result[T]{Err: ErrAllProfilesFailed, Elapsed: time.Since(start), Attempted: len(sample)}
}

// readAttempt runs one profile's read. raceCtx is shared by the sample and is
// cancelled once a winner is chosen; callerCtx tells that benign cancellation
// apart from the caller giving up. Failures are logged here so that a loser
// failing after the winner returned is still reported.
func readAttempt[T any](raceCtx, callerCtx context.Context, log *slog.Logger, operation string, p profile.Profile, database string, factory sqlexec.Factory, run readFunc[T]) (a Attempt[T]) {
	start := time.Now()
	a.Profile = p.Name
	defer func() {
		a.Elapsed = time.Since(start)
		switch {
		case a.OK:
			observe(operation, metrics.OutcomeSuccess, a.Elapsed)
		case apperrors.KindOf(a.Err) == apperrors.Cancellation && callerCtx.Err() == nil:
			log.Debug("read attempt cancelled", "profile", a.Profile, "elapsed", a.Elapsed)
			observe(operation, metrics.OutcomeCancelled, a.Elapsed)
		case callerCtx.Err() != nil:
			log.Debug("read attempt abandoned", "profile", a.Profile, "elapsed", a.Elapsed, "error", a.Err)
			observe(operation, metrics.OutcomeFailure, a.Elapsed)
		default:
			log.Warn("read attempt failed", "profile", a.Profile, "elapsed", a.Elapsed, "error", logging.DescribeDBError(a.Err))
			observe(operation, metrics.OutcomeFailure, a.Elapsed)
		}
	}()
	defer recoverAttempt(p.Name, &a.Err)

	conn, err := factory.Open(raceCtx, p, database)
	if err != nil {
		a.Err = attemptError(raceCtx, p.Name, apperrors.ConnectionFailure, err)
		return a
	}
	defer conn.Close()

	v, found, err := run(raceCtx, conn)
	if err != nil {
		a.Err = attemptError(raceCtx, p.Name, apperrors.QueryExecutionFailure, err)
		return a
	}
	a.OK, a.Value, a.Found = true, v, found
	return a
}
