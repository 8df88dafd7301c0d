package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	// Drivers selectable per profile.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"airplan/cli/internal/dsn"
	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/profile"
)

// DriverFactory opens real connections through database/sql. One *sqlx.DB
// pool is kept per data source; every Open checks out a dedicated connection
// from it that the caller must Close.
type DriverFactory struct {
	logger *slog.Logger

	mu  sync.Mutex
	dbs map[string]*sqlx.DB
	// owners maps profile name and database to the pool key last used for
	// them, so a pool left behind by an edited profile can be closed.
	owners map[string]string
}

// NewDriverFactory creates a factory. A nil logger uses the global one.
func NewDriverFactory(logger *slog.Logger) *DriverFactory {
	if logger == nil {
		logger = logging.Get()
	}
	return &DriverFactory{logger: logger, dbs: make(map[string]*sqlx.DB), owners: make(map[string]string)}
}

// pool returns the cached pool for source. Keys include the password, so
// editing a profile yields a new pool; the one it replaces is closed once no
// other profile uses it. Connections already checked out from it stay usable
// until released.
func (f *DriverFactory) pool(owner, driverName, source string) (*sqlx.DB, error) {
	f.mu.Lock()
	key := driverName + "\x00" + source
	stale := f.release(owner, key)
	db, ok := f.dbs[key]
	if !ok {
		var err error
		if db, err = sqlx.Open(driverName, source); err != nil {
			f.mu.Unlock()
			return nil, err
		}
		db.SetMaxIdleConns(2)
		db.SetConnMaxIdleTime(time.Minute)
		db.SetConnMaxLifetime(5 * time.Minute)
		f.dbs[key] = db
	}
	f.owners[owner] = key
	f.mu.Unlock()

	if stale != nil {
		if err := stale.Close(); err != nil {
			f.logger.Debug("closing replaced pool", "profile", owner, "error", err)
		}
	}
	return db, nil
}

// release drops owner's claim on its previous pool when it moves to key and
// returns that pool if nothing else uses it. f.mu must be held.
func (f *DriverFactory) release(owner, key string) *sqlx.DB {
	prev, ok := f.owners[owner]
	if !ok || prev == key {
		return nil
	}
	delete(f.owners, owner)
	for _, k := range f.owners {
		if k == prev {
			return nil
		}
	}
	db := f.dbs[prev]
	delete(f.dbs, prev)
	return db
}

// Open checks out a connection to database on the server described by p.
// Connect time is bounded by the profile timeout.
func (f *DriverFactory) Open(ctx context.Context, p profile.Profile, database string) (Conn, error) {
	p = p.WithDefaults()
	driverName, source, err := dsn.ForProfile(p, database)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConnectionFailure, "profile "+p.Name, err)
	}
	db, err := f.pool(p.Name+"\x00"+database, driverName, source)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConnectionFailure, "profile "+p.Name, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	c, err := db.Connx(connectCtx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConnectionFailure, "profile "+p.Name, err)
	}
	// database/sql connects lazily for some drivers; force a round trip.
	if err := c.PingContext(connectCtx); err != nil {
		_ = c.Close()
		return nil, apperrors.Wrap(apperrors.ConnectionFailure, "profile "+p.Name, err)
	}

	f.logger.Debug("connection opened", "profile", p.Name, "driver", driverName, "address", p.Address(), "database", database)
	return &conn{
		conn:     c,
		profile:  p.Name,
		bindType: BindTypeFor(driverName),
		timeout:  p.Timeout,
	}, nil
}

// Close closes every cached pool.
func (f *DriverFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result *multierror.Error
	for key, db := range f.dbs {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(f.dbs, key)
	}
	clear(f.owners)
	return result.ErrorOrNil()
}

type conn struct {
	conn     *sqlx.Conn
	profile  string
	bindType int
	timeout  time.Duration
}

// rows cancels the statement deadline once the cursor is closed.
type rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

func (r *rows) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}

func (c *conn) Query(ctx context.Context, query string, params Params) (Rows, error) {
	bound, args, err := Bind(c.bindType, query, params)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.QueryExecutionFailure, "bind parameters", err)
	}
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	r, err := c.conn.QueryContext(qctx, bound, args...)
	if err != nil {
		cancel()
		return nil, queryError(ctx, err)
	}
	return &rows{Rows: r, cancel: cancel}, nil
}

func (c *conn) Exec(ctx context.Context, query string, params Params) (ExecResult, error) {
	bound, args, err := Bind(c.bindType, query, params)
	if err != nil {
		return ExecResult{}, apperrors.Wrap(apperrors.QueryExecutionFailure, "bind parameters", err)
	}
	ectx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.conn.ExecContext(ectx, bound, args...)
	if err != nil {
		return ExecResult{}, queryError(ctx, err)
	}

	var out ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ExecResult{}, apperrors.Wrap(apperrors.QueryExecutionFailure, "rows affected", err)
	}
	// pgx does not support LastInsertId.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID, out.HasInsertID = id, true
	}
	return out, nil
}

func (c *conn) Close() error {
	return c.conn.Close()
}

// queryError classifies a statement failure. Only an error caused by ctx
// ending is a cancellation. A statement that ran past the profile timeout
// ended its own deadline, not ctx, and is a failed query.
func queryError(ctx context.Context, err error) error {
	if Cancelled(ctx, err) {
		return apperrors.Wrap(apperrors.Cancellation, "statement cancelled", err)
	}
	return apperrors.Wrap(apperrors.QueryExecutionFailure, "statement failed", err)
}

// sqliteInterrupt is SQLITE_INTERRUPT, returned by modernc sqlite when a
// running statement is interrupted through its context.
const sqliteInterrupt = 9

// Cancelled reports whether err is the result of ctx ending. A real failure
// that merely arrives after ctx ended, such as a refused connection, is not.
func Cancelled(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	if errors.Is(err, ctx.Err()) {
		return true
	}
	var coded interface{ Code() int }
	return errors.As(err, &coded) && coded.Code() == sqliteInterrupt
}
