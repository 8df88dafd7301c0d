// Package sqlexectest provides an in-memory sqlexec.Factory for tests.
package sqlexectest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"airplan/cli/internal/profile"
	"airplan/cli/internal/sqlexec"
)

// Behavior scripts how one profile responds.
type Behavior struct {
	// Delay is applied before each statement and honours cancellation.
	Delay time.Duration
	// OpenDelay stalls Open without watching the context, like a dial that
	// only gives up on its own timeout.
	OpenDelay time.Duration
	// OpenErr makes Open fail.
	OpenErr error
	// QueryErr makes every Query fail.
	QueryErr error
	Columns  []string
	Rows     [][]any
	// Exec overrides ExecErr/ExecResult when set.
	Exec       func(query string, params sqlexec.Params) (sqlexec.ExecResult, error)
	ExecErr    error
	ExecResult sqlexec.ExecResult
}

// Call records a statement that reached a profile.
type Call struct {
	Profile string
	Query   string
	Params  sqlexec.Params
	Exec    bool
}

// Factory is a scripted sqlexec.Factory. Profiles without a Behavior answer
// every query with no rows and every exec with zero rows affected.
type Factory struct {
	mu        sync.Mutex
	behaviors map[string]*Behavior
	calls     []Call
	opens     map[string]int
	closes    map[string]int
	cancelled map[string]int
}

// New returns an empty fake factory.
func New() *Factory {
	return &Factory{
		behaviors: make(map[string]*Behavior),
		opens:     make(map[string]int),
		closes:    make(map[string]int),
		cancelled: make(map[string]int),
	}
}

// Set installs the behavior for a profile name and returns the factory.
func (f *Factory) Set(name string, b Behavior) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviors[name] = &b
	return f
}

func (f *Factory) behavior(name string) Behavior {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.behaviors[name]; ok {
		return *b
	}
	return Behavior{}
}

// Open implements sqlexec.Factory.
func (f *Factory) Open(ctx context.Context, p profile.Profile, database string) (sqlexec.Conn, error) {
	f.mu.Lock()
	f.opens[p.Name]++
	f.mu.Unlock()

	b := f.behavior(p.Name)
	if b.OpenDelay > 0 {
		time.Sleep(b.OpenDelay)
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	return &conn{f: f, name: p.Name}, nil
}

// Opens reports how many times Open was called for a profile.
func (f *Factory) Opens(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[name]
}

// TotalOpens reports Open calls across all profiles.
func (f *Factory) TotalOpens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.opens {
		n += c
	}
	return n
}

// Closes reports how many connections were closed for a profile.
func (f *Factory) Closes(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[name]
}

// Cancelled reports how many statements on a profile ended through cancellation.
func (f *Factory) Cancelled(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[name]
}

// Calls returns statements that reached a profile, in arrival order.
func (f *Factory) Calls(name string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Profile == name {
			out = append(out, c)
		}
	}
	return out
}

type conn struct {
	f    *Factory
	name string
}

func (c *conn) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		c.f.mu.Lock()
		c.f.cancelled[c.name]++
		c.f.mu.Unlock()
		return ctx.Err()
	}
}

func (c *conn) record(query string, params sqlexec.Params, exec bool) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.calls = append(c.f.calls, Call{Profile: c.name, Query: query, Params: params, Exec: exec})
}

func (c *conn) Query(ctx context.Context, query string, params sqlexec.Params) (sqlexec.Rows, error) {
	b := c.f.behavior(c.name)
	if err := c.wait(ctx, b.Delay); err != nil {
		return nil, err
	}
	c.record(query, params, false)
	if b.QueryErr != nil {
		return nil, b.QueryErr
	}
	return &Rows{Cols: b.Columns, Data: b.Rows, pos: -1}, nil
}

func (c *conn) Exec(ctx context.Context, query string, params sqlexec.Params) (sqlexec.ExecResult, error) {
	b := c.f.behavior(c.name)
	if err := c.wait(ctx, b.Delay); err != nil {
		return sqlexec.ExecResult{}, err
	}
	c.record(query, params, true)
	if b.Exec != nil {
		return b.Exec(query, params)
	}
	if b.ExecErr != nil {
		return sqlexec.ExecResult{}, b.ExecErr
	}
	return b.ExecResult, nil
}

func (c *conn) Close() error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.closes[c.name]++
	return nil
}

// Rows is an in-memory sqlexec.Rows.
type Rows struct {
	Cols []string
	Data [][]any
	pos  int
}

// NewRows builds a cursor over data.
func NewRows(cols []string, data ...[]any) *Rows {
	return &Rows{Cols: cols, Data: data, pos: -1}
}

func (r *Rows) Next() bool {
	r.pos++
	return r.pos < len(r.Data)
}

func (r *Rows) Columns() ([]string, error) { return r.Cols, nil }
func (r *Rows) Err() error                 { return nil }
func (r *Rows) Close() error               { return nil }

// Scan assigns the current row to dest. Destinations implementing sql.Scanner
// receive the raw value; others are set by reflection with conversion.
func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.Data) {
		return errors.New("sqlexectest: Scan called without a current row")
	}
	row := r.Data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("sqlexectest: expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("sqlexectest: column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	if s, ok := dest.(sql.Scanner); ok {
		return s.Scan(src)
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.New("destination is not a non-nil pointer")
	}
	ev := dv.Elem()
	if src == nil {
		ev.Set(reflect.Zero(ev.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(ev.Type()):
		ev.Set(sv)
	case sv.Type().ConvertibleTo(ev.Type()):
		ev.Set(sv.Convert(ev.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", src, ev.Type())
	}
	return nil
}
