package router

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/profile"
	"airplan/cli/internal/sqlexec"
)

// writeFunc runs the write on an open connection, filling in a.
type writeFunc func(ctx context.Context, conn sqlexec.Conn, a *WriteAttempt) error

// WriteFanOut executes query on every profile concurrently and waits for all
// of them. Callers treat the write as accepted when AnySucceeded.
func (r *Router) WriteFanOut(ctx context.Context, database, query string, params sqlexec.Params) FanOutResult {
	return r.fanOut(ctx, "write_fan_out", database, func(ctx context.Context, conn sqlexec.Conn, a *WriteAttempt) error {
		res, err := conn.Exec(ctx, query, params)
		if err != nil {
			return err
		}
		a.RowsAffected = res.RowsAffected
		a.LastInsertID, a.HasInsertID = res.LastInsertID, res.HasInsertID
		return nil
	})
}

// WriteSelfHealing runs updateSQL on every profile and, on each profile where
// it affected no row, runs insertSQL on the same connection. Generated ids may
// differ between profiles.
func (r *Router) WriteSelfHealing(ctx context.Context, database, updateSQL string, updateParams sqlexec.Params, insertSQL string, insertParams sqlexec.Params) FanOutResult {
	return r.fanOut(ctx, "write_self_healing", database, func(ctx context.Context, conn sqlexec.Conn, a *WriteAttempt) error {
		upd, err := conn.Exec(ctx, updateSQL, updateParams)
		if err != nil {
			return err
		}
		if upd.RowsAffected > 0 {
			a.RowsAffected = upd.RowsAffected
			return nil
		}

		ins, err := conn.Exec(ctx, insertSQL, insertParams)
		if err != nil {
			return err
		}
		metrics.SelfHealingInserts.Inc()
		a.Inserted = true
		a.RowsAffected = ins.RowsAffected
		a.LastInsertID, a.HasInsertID = ins.LastInsertID, ins.HasInsertID
		return nil
	})
}

// Probe checks that every profile accepts connections to database.
func (r *Router) Probe(ctx context.Context, database string) FanOutResult {
	return r.fanOut(ctx, "probe", database, func(ctx context.Context, conn sqlexec.Conn, a *WriteAttempt) error {
		rows, err := conn.Query(ctx, "SELECT 1", nil)
		if err != nil {
			return err
		}
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		return rows.Close()
	})
}

func (r *Router) fanOut(ctx context.Context, operation, database string, run writeFunc) FanOutResult {
	log := r.callLogger(operation, database)

	ps, err := r.profiles(ctx)
	if err != nil {
		log.Error("write not attempted", "error", err)
		metrics.RouterCalls.WithLabelValues(operation, callResultLabel(err)).Inc()
		return FanOutResult{Err: err}
	}

	results := make([]WriteAttempt, len(ps))
	var g errgroup.Group
	for i, p := range ps {
		g.Go(func() error {
			results[i] = writeAttempt(ctx, log, operation, p, database, r.factory, run)
			return nil
		})
	}
	_ = g.Wait()

	out := FanOutResult{Results: results}
	for _, a := range out.Failed() {
		log.Warn("write attempt failed", "profile", a.Profile, "elapsed", a.Elapsed, "error", logging.DescribeDBError(a.Err))
	}
	switch {
	case out.AllSucceeded():
		log.Debug("write applied on every profile", "profiles", out.Total())
		metrics.RouterCalls.WithLabelValues(operation, metrics.ResultOK).Inc()
	case out.AnySucceeded():
		log.Warn("write applied on some profiles", "succeeded", out.SuccessCount(), "failed", out.FailureCount())
		metrics.RouterCalls.WithLabelValues(operation, metrics.ResultPartial).Inc()
	default:
		log.Error("write failed on every profile", "profiles", out.Total())
		metrics.RouterCalls.WithLabelValues(operation, metrics.ResultFailed).Inc()
	}
	return out
}

func writeAttempt(ctx context.Context, log *slog.Logger, operation string, p profile.Profile, database string, factory sqlexec.Factory, run writeFunc) (a WriteAttempt) {
	start := time.Now()
	a.Profile = p.Name
	defer func() {
		a.Elapsed = time.Since(start)
		outcome := metrics.OutcomeFailure
		switch {
		case a.OK:
			outcome = metrics.OutcomeSuccess
		case apperrors.KindOf(a.Err) == apperrors.Cancellation:
			outcome = metrics.OutcomeCancelled
		}
		observe(operation, outcome, a.Elapsed)
	}()
	defer recoverAttempt(p.Name, &a.Err)

	conn, err := factory.Open(ctx, p, database)
	if err != nil {
		a.Err = attemptError(ctx, p.Name, apperrors.ConnectionFailure, err)
		return a
	}
	defer conn.Close()

	if err := run(ctx, conn, &a); err != nil {
		a.Err = attemptError(ctx, p.Name, apperrors.QueryExecutionFailure, err)
		// Partial progress from a failed attempt is not reported.
		a.RowsAffected, a.LastInsertID, a.HasInsertID, a.Inserted = 0, 0, false, false
		return a
	}
	a.OK = true
	log.Debug("write attempt done", "profile", a.Profile, "rows", a.RowsAffected, "inserted", a.Inserted)
	return a
}
