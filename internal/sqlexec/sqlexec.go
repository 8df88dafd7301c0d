// Package sqlexec opens per-profile database connections and runs statements
// with named parameters on them.
//
// Statements use :name placeholders. Parameters are bound with sqlx and the
// query is rebound to the placeholder style of the profile's driver, so the
// same statement text runs against MySQL, PostgreSQL and SQLite replicas.
// A statement with no parameters is sent untouched.
package sqlexec

import (
	"context"

	"github.com/jmoiron/sqlx"

	"airplan/cli/internal/profile"
)

// Params maps placeholder names (without the leading colon) to values.
type Params map[string]any

// ExecResult reports what a data-modifying statement did.
type ExecResult struct {
	RowsAffected int64
	// LastInsertID is meaningful only when HasInsertID is true.
	LastInsertID int64
	HasInsertID  bool
}

// Row is the view of the current result row handed to mappers.
type Row interface {
	Scan(dest ...any) error
	Columns() ([]string, error)
}

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Row
	Next() bool
	Err() error
	Close() error
}

// Conn is a single connection bound to one profile and database.
// A Conn is used by one goroutine at a time.
type Conn interface {
	Query(ctx context.Context, query string, params Params) (Rows, error)
	Exec(ctx context.Context, query string, params Params) (ExecResult, error)
	Close() error
}

// Factory opens connections for a profile.
type Factory interface {
	Open(ctx context.Context, p profile.Profile, database string) (Conn, error)
}

// Bind expands :name placeholders in query using params and rebinds the
// result for bindType (one of the sqlx bind types).
func Bind(bindType int, query string, params Params) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}
	named, args, err := sqlx.Named(query, map[string]any(params))
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(bindType, named), args, nil
}

// BindTypeFor returns the placeholder style used by a database/sql driver.
func BindTypeFor(driverName string) int {
	if bt := sqlx.BindType(driverName); bt != sqlx.UNKNOWN {
		return bt
	}
	return sqlx.QUESTION
}
