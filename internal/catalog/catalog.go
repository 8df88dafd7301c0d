// Package catalog holds the traffic-department records airplan schedules:
// advertising agencies, their commercials and the spots booked on air.
//
// Every read goes through the router's parallel-first-success path and every
// write is a self-healing or fan-out write, so records are addressed by their
// natural keys. Generated ids are returned for display only; they differ
// from one server to the next.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"airplan/cli/internal/logging"
	"airplan/cli/internal/retry"
	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
)

var (
	// ErrDisconnected is returned when a read failed on every sampled server.
	ErrDisconnected = errors.New("catalog: no database server answered")
	// ErrRejected is returned when a write failed on every server.
	ErrRejected = errors.New("catalog: write failed on every database server")
)

// Service reads and writes catalog records in one database.
type Service struct {
	router   *router.Router
	database string
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRetry retries writes that every server rejected.
func WithRetry(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service for database.
func New(r *router.Router, database string, opts ...Option) *Service {
	s := &Service{router: r, database: database}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Get()
	}
	return s
}

// Database returns the target database name.
func (s *Service) Database() string { return s.database }

func readErr[T any](res router.Result[T]) error {
	if res.OK {
		return nil
	}
	if errors.Is(res.Err, router.ErrAllProfilesFailed) {
		return ErrDisconnected
	}
	return res.Err
}

// writeErr reports a write that was not accepted anywhere. A write accepted
// by some servers returns nil; the caller inspects the result for warnings.
func writeErr(res router.FanOutResult) error {
	switch {
	case res.Err != nil:
		return res.Err
	case res.AllFailed():
		return ErrRejected
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, what, updateSQL, insertSQL string, params sqlexec.Params) (router.FanOutResult, error) {
	res := retry.Write(ctx, s.policy, func(ctx context.Context) router.FanOutResult {
		return s.router.WriteSelfHealing(ctx, s.database, updateSQL, params, insertSQL, params)
	})
	if !res.AllSucceeded() && res.AnySucceeded() {
		s.logger.Warn(what+" saved on some servers only", "result", res.Summary())
	}
	return res, writeErr(res)
}

func (s *Service) exec(ctx context.Context, what, query string, params sqlexec.Params) (router.FanOutResult, error) {
	res := retry.Write(ctx, s.policy, func(ctx context.Context) router.FanOutResult {
		return s.router.WriteFanOut(ctx, s.database, query, params)
	})
	if !res.AllSucceeded() && res.AnySucceeded() {
		s.logger.Warn(what+" applied on some servers only", "result", res.Summary())
	}
	return res, writeErr(res)
}

// nullable stores empty optional text as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const dateLayout = "2006-01-02"

// dateScanner accepts DATE columns as time.Time (MySQL with parseTime,
// pgx) or text (SQLite) and keeps them as YYYY-MM-DD.
type dateScanner struct{ dst *string }

func (d dateScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.dst = v.Format(dateLayout)
	case string:
		*d.dst = trimDate(v)
	case []byte:
		*d.dst = trimDate(string(v))
	case nil:
		*d.dst = ""
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
	return nil
}

func trimDate(s string) string {
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}

var _ sql.Scanner = dateScanner{}
