package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/profile"
	"airplan/cli/internal/sqlexec"
	"airplan/cli/internal/sqlexec/sqlexectest"
)

// syncBuffer lets attempts that outlive a call keep logging while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newRouter(t *testing.T, names ...string) (*Router, *sqlexectest.Factory, *syncBuffer) {
	t.Helper()
	ps := make(profile.Static, len(names))
	for i, n := range names {
		ps[i] = profile.Profile{Name: n, Host: n, User: "sched", Order: i}
	}
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := sqlexectest.New()
	return New(ps, f, WithLogger(logger)), f, buf
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i)
	}
	return out
}

type agencyRow struct{ ID int64 }

func mapAgency(row sqlexec.Row) (agencyRow, error) {
	var a agencyRow
	err := row.Scan(&a.ID)
	return a, err
}

var errRefused = errors.New("dial tcp 10.0.0.5:3306: connect: connection refused")

func TestReadSamplesAtMostThree(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7} {
		t.Run(fmt.Sprintf("%d profiles", n), func(t *testing.T) {
			r, f, _ := newRouter(t, names(n)...)
			for _, name := range names(n) {
				f.Set(name, sqlexectest.Behavior{QueryErr: errors.New("boom")})
			}

			res := ReadOne(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
			require.False(t, res.OK)
			assert.Equal(t, min(n, MaxReadFanOut), res.Attempted)
			assert.Equal(t, min(n, MaxReadFanOut), f.TotalOpens())
		})
	}
}

func TestNoProfilesFailsWithoutConnecting(t *testing.T) {
	r, f, _ := newRouter(t)
	ctx := context.Background()

	one := ReadOne(ctx, r, "commercials", "SELECT 1", nil, mapAgency)
	assert.False(t, one.OK)
	assert.ErrorIs(t, one.Err, ErrNoProfiles)
	assert.Equal(t, apperrors.NoProfilesConfigured, apperrors.KindOf(one.Err))

	many := ReadMany(ctx, r, "commercials", "SELECT 1", nil, mapAgency)
	assert.ErrorIs(t, many.Err, ErrNoProfiles)

	scalar := ReadScalar[int64](ctx, r, "commercials", "SELECT 1", nil)
	assert.ErrorIs(t, scalar.Err, ErrNoProfiles)

	for _, res := range []FanOutResult{
		r.WriteFanOut(ctx, "commercials", "DELETE FROM spot", nil),
		r.WriteSelfHealing(ctx, "commercials", "UPDATE a SET x=1", nil, "INSERT INTO a VALUES (1)", nil),
		r.Probe(ctx, "commercials"),
	} {
		assert.ErrorIs(t, res.Err, ErrNoProfiles)
		assert.Zero(t, res.Total())
		assert.True(t, res.AllFailed())
		assert.False(t, res.AnySucceeded())
		assert.False(t, res.AllSucceeded())
	}

	assert.Zero(t, f.TotalOpens())
}

func TestProfileSourceError(t *testing.T) {
	f := sqlexectest.New()
	r := New(failingSource{}, f, WithLogger(slog.New(slog.DiscardHandler)))

	res := ReadOne(context.Background(), r, "commercials", "SELECT 1", nil, mapAgency)
	require.Error(t, res.Err)
	assert.Equal(t, apperrors.ProfileStore, apperrors.KindOf(res.Err))

	w := r.WriteFanOut(context.Background(), "commercials", "DELETE FROM spot", nil)
	assert.Equal(t, apperrors.ProfileStore, apperrors.KindOf(w.Err))
	assert.Zero(t, f.TotalOpens())
}

type failingSource struct{}

func (failingSource) Profiles(context.Context) ([]profile.Profile, error) {
	return nil, errors.New("profiles.toml: permission denied")
}

// First success by completion order wins; a pending profile is cancelled
// without being reported as a failure, and the earlier failure is logged.
func TestReadFirstSuccessWins(t *testing.T) {
	r, f, logs := newRouter(t, "a", "b", "c")
	f.Set("a", sqlexectest.Behavior{OpenErr: errRefused})
	f.Set("b", sqlexectest.Behavior{Delay: 20 * time.Millisecond, Columns: []string{"id"}, Rows: [][]any{{int64(5)}}})
	f.Set("c", sqlexectest.Behavior{Delay: 10 * time.Second, Columns: []string{"id"}, Rows: [][]any{{int64(9)}}})

	cancelledBefore := testutil.ToFloat64(metrics.RouterAttempts.WithLabelValues("read_one", metrics.OutcomeCancelled))

	start := time.Now()
	res := ReadOne(context.Background(), r, "commercials", "SELECT id FROM agency WHERE code = :code", sqlexec.Params{"code": "ACM"}, mapAgency)
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, res.Found)
	assert.Equal(t, agencyRow{ID: 5}, res.Value)
	assert.Equal(t, "b", res.Profile)
	assert.Equal(t, 3, res.Attempted)
	assert.NoError(t, res.Err)

	require.Eventually(t, func() bool { return f.Cancelled("c") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.Closes("c") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RouterAttempts.WithLabelValues("read_one", metrics.OutcomeCancelled)) == cancelledBefore+1
	}, 2*time.Second, 5*time.Millisecond)

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, `"msg":"read attempt failed"`))
	assert.Contains(t, out, `"profile":"a"`)
	assert.Contains(t, out, `"msg":"read attempt cancelled"`)
	assert.NotContains(t, out, `"msg":"all sampled profiles failed"`)
	assert.Empty(t, f.Calls("c"), "cancelled attempt must not reach the statement")
}

// A loser that fails for its own reason after the winner returned is a
// failure in logs and metrics, not a cancellation.
func TestReadLateLoserFailureIsReported(t *testing.T) {
	r, f, logs := newRouter(t, "a", "b")
	f.Set("a", sqlexectest.Behavior{Columns: []string{"id"}, Rows: [][]any{{int64(5)}}})
	f.Set("b", sqlexectest.Behavior{OpenDelay: 100 * time.Millisecond, OpenErr: errRefused})

	failed := metrics.RouterAttempts.WithLabelValues("read_one", metrics.OutcomeFailure)
	cancelled := metrics.RouterAttempts.WithLabelValues("read_one", metrics.OutcomeCancelled)
	failedBefore, cancelledBefore := testutil.ToFloat64(failed), testutil.ToFloat64(cancelled)

	res := ReadOne(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, "a", res.Profile)

	require.Eventually(t, func() bool { return testutil.ToFloat64(failed) >= failedBefore+1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, cancelledBefore, testutil.ToFloat64(cancelled))
	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, `"msg":"read attempt failed"`))
	assert.Contains(t, out, `"profile":"b"`)
	assert.NotContains(t, out, `"msg":"read attempt cancelled"`)
}

func TestAttemptErrorClassification(t *testing.T) {
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want apperrors.Kind
	}{
		{name: "driver error", ctx: live, err: errRefused, want: apperrors.ConnectionFailure},
		{name: "statement timeout while call is live", ctx: live, err: context.DeadlineExceeded, want: apperrors.ConnectionFailure},
		{name: "cancelled by race", ctx: done, err: fmt.Errorf("read: %w", context.Canceled), want: apperrors.Cancellation},
		{name: "real failure after race ended", ctx: done, err: errRefused, want: apperrors.ConnectionFailure},
		{name: "kind kept", ctx: live, err: apperrors.Wrap(apperrors.QueryExecutionFailure, "statement failed", errRefused), want: apperrors.QueryExecutionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attemptError(tt.ctx, "a", apperrors.ConnectionFailure, tt.err)
			assert.Equal(t, tt.want, apperrors.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestReadAllSampledFailNeverConsultsBeyond(t *testing.T) {
	r, f, logs := newRouter(t, "a", "b", "c", "d", "e")
	f.Set("a", sqlexectest.Behavior{OpenErr: errRefused})
	f.Set("b", sqlexectest.Behavior{QueryErr: errors.New("Error 1146: Table 'commercials.agency' doesn't exist")})
	f.Set("c", sqlexectest.Behavior{OpenErr: context.DeadlineExceeded})
	f.Set("d", sqlexectest.Behavior{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}})

	res := ReadOne(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrAllProfilesFailed)
	assert.Equal(t, apperrors.AllProfilesFailed, apperrors.KindOf(res.Err))
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, agencyRow{}, res.Value)
	assert.Zero(t, f.Opens("d"))
	assert.Zero(t, f.Opens("e"))
	assert.Equal(t, 3, strings.Count(logs.String(), `"msg":"read attempt failed"`))
	assert.Contains(t, logs.String(), `"msg":"all sampled profiles failed"`)
}

func TestReadZeroRowsIsSuccess(t *testing.T) {
	r, f, _ := newRouter(t, "a")
	f.Set("a", sqlexectest.Behavior{Columns: []string{"id"}})

	one := ReadOne(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
	require.True(t, one.OK)
	assert.False(t, one.Found)
	assert.Equal(t, agencyRow{}, one.Value)

	many := ReadMany(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
	require.True(t, many.OK)
	assert.False(t, many.Found)
	assert.Empty(t, many.Value)
}

func TestReadMany(t *testing.T) {
	r, f, _ := newRouter(t, "a")
	f.Set("a", sqlexectest.Behavior{Columns: []string{"id"}, Rows: [][]any{{int64(1)}, {int64(2)}, {int64(3)}}})

	res := ReadMany(context.Background(), r, "commercials", "SELECT id FROM agency", nil, mapAgency)
	require.True(t, res.OK)
	assert.True(t, res.Found)
	assert.Equal(t, []agencyRow{{1}, {2}, {3}}, res.Value)
}

func TestReadScalar(t *testing.T) {
	r, f, _ := newRouter(t, "a")

	f.Set("a", sqlexectest.Behavior{Columns: []string{"n"}, Rows: [][]any{{int64(42)}}})
	res := ReadScalar[int64](context.Background(), r, "commercials", "SELECT COUNT(*) FROM commercial", nil)
	require.True(t, res.OK)
	assert.True(t, res.Found)
	assert.Equal(t, int64(42), res.Value)

	f.Set("a", sqlexectest.Behavior{Columns: []string{"n"}, Rows: [][]any{{nil}}})
	null := ReadScalar[string](context.Background(), r, "commercials", "SELECT MAX(title) FROM commercial", nil)
	require.True(t, null.OK)
	assert.False(t, null.Found)
	assert.Equal(t, "", null.Value)

	f.Set("a", sqlexectest.Behavior{Columns: []string{"n"}})
	none := ReadScalar[int64](context.Background(), r, "commercials", "SELECT id FROM commercial WHERE 1=0", nil)
	require.True(t, none.OK)
	assert.False(t, none.Found)
}

func TestReadMapperFailureAndPanicAreAttemptFailures(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", sqlexectest.Behavior{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}})
	f.Set("b", sqlexectest.Behavior{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}})

	res := ReadOne(context.Background(), r, "commercials", "SELECT id", nil, func(sqlexec.Row) (int, error) {
		return 0, errors.New("bad row")
	})
	assert.ErrorIs(t, res.Err, ErrAllProfilesFailed)

	res = ReadOne(context.Background(), r, "commercials", "SELECT id", nil, func(sqlexec.Row) (int, error) {
		panic("mapper bug")
	})
	assert.ErrorIs(t, res.Err, ErrAllProfilesFailed)
	assert.Equal(t, f.Opens("a"), f.Closes("a"))
}

func TestReadCallerCancellation(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", sqlexectest.Behavior{Delay: 10 * time.Second})
	f.Set("b", sqlexectest.Behavior{Delay: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := ReadOne(ctx, r, "commercials", "SELECT id", nil, mapAgency)
	assert.False(t, res.OK)
	assert.Equal(t, apperrors.Cancellation, apperrors.KindOf(res.Err))
	assert.NotErrorIs(t, res.Err, ErrAllProfilesFailed)
}

func TestWriteFanOutReturnsOneResultPerProfile(t *testing.T) {
	r, f, _ := newRouter(t, "p0", "p1", "p2", "p3")
	for _, n := range []string{"p0", "p1", "p3"} {
		f.Set(n, sqlexectest.Behavior{ExecResult: sqlexec.ExecResult{RowsAffected: 1}})
	}
	f.Set("p2", sqlexectest.Behavior{ExecErr: errors.New("Error 1062: Duplicate entry")})

	res := r.WriteFanOut(context.Background(), "commercials", "DELETE FROM spot WHERE station = :station", sqlexec.Params{"station": "KXYZ"})
	require.NoError(t, res.Err)
	require.Equal(t, 4, res.Total())
	for i, a := range res.Results {
		assert.Equal(t, fmt.Sprintf("p%d", i), a.Profile, "results keep profile order")
	}

	assert.Equal(t, 3, res.SuccessCount())
	assert.Equal(t, 1, res.FailureCount())
	assert.True(t, res.AnySucceeded())
	assert.False(t, res.AllSucceeded())
	assert.False(t, res.AllFailed())

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "p2", failed[0].Profile)
	assert.Equal(t, apperrors.QueryExecutionFailure, apperrors.KindOf(failed[0].Err))
	assert.Equal(t, "3/4 profiles succeeded", res.Summary())

	for _, n := range []string{"p0", "p1", "p2", "p3"} {
		calls := f.Calls(n)
		require.Len(t, calls, 1)
		assert.Equal(t, sqlexec.Params{"station": "KXYZ"}, calls[0].Params)
		assert.Equal(t, 1, f.Closes(n))
	}
}

func TestWriteFanOutConnectionFailureDoesNotAffectOthers(t *testing.T) {
	r, f, _ := newRouter(t, names(6)...)
	f.Set("p4", sqlexectest.Behavior{OpenErr: errRefused})
	f.Set("p5", sqlexectest.Behavior{Delay: 50 * time.Millisecond})

	res := r.WriteFanOut(context.Background(), "commercials", "UPDATE x SET y = 1", nil)
	assert.Equal(t, 6, res.Total(), "writes are never sampled")
	assert.Equal(t, 5, res.SuccessCount())
	assert.Equal(t, apperrors.ConnectionFailure, apperrors.KindOf(res.Failed()[0].Err))
	assert.Zero(t, f.Closes("p4"))
}

func TestFanOutPredicates(t *testing.T) {
	ok := WriteAttempt{OK: true}
	bad := WriteAttempt{Err: errRefused}

	tests := []struct {
		name                string
		results             []WriteAttempt
		all, any, allFailed bool
		successes, failures int
	}{
		{name: "empty", allFailed: true},
		{name: "all ok", results: []WriteAttempt{ok, ok}, all: true, any: true, successes: 2},
		{name: "mixed", results: []WriteAttempt{ok, bad, ok}, any: true, successes: 2, failures: 1},
		{name: "all failed", results: []WriteAttempt{bad, bad}, allFailed: true, failures: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FanOutResult{Results: tt.results}
			assert.Equal(t, tt.all, f.AllSucceeded())
			assert.Equal(t, tt.any, f.AnySucceeded())
			assert.Equal(t, tt.allFailed, f.AllFailed())
			assert.Equal(t, tt.successes, f.SuccessCount())
			assert.Equal(t, tt.failures, f.FailureCount())
			assert.Len(t, f.Failed(), tt.failures)
		})
	}
}

// upsert scripts a profile whose UPDATE affects updated rows and whose INSERT
// yields id.
func upsert(updated, id int64) sqlexectest.Behavior {
	return sqlexectest.Behavior{Exec: func(query string, _ sqlexec.Params) (sqlexec.ExecResult, error) {
		if strings.HasPrefix(query, "UPDATE") {
			return sqlexec.ExecResult{RowsAffected: updated}, nil
		}
		return sqlexec.ExecResult{RowsAffected: 1, LastInsertID: id, HasInsertID: true}, nil
	}}
}

const (
	updateAgency = "UPDATE agency SET name = :name WHERE code = :code"
	insertAgency = "INSERT INTO agency (code, name) VALUES (:code, :name)"
)

func TestWriteSelfHealingInsertsOnlyWhereUpdateMissed(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", upsert(0, 11))
	f.Set("b", upsert(1, 99))

	params := sqlexec.Params{"code": "ACM", "name": "Acme"}
	res := r.WriteSelfHealing(context.Background(), "commercials", updateAgency, params, insertAgency, params)
	require.True(t, res.AllSucceeded())

	a, b := res.Results[0], res.Results[1]
	assert.True(t, a.Inserted)
	assert.True(t, a.HasInsertID)
	assert.Equal(t, int64(11), a.LastInsertID)
	require.Len(t, f.Calls("a"), 2)
	assert.Equal(t, insertAgency, f.Calls("a")[1].Query)

	assert.False(t, b.Inserted)
	assert.False(t, b.HasInsertID)
	assert.Equal(t, int64(1), b.RowsAffected)
	require.Len(t, f.Calls("b"), 1)
	assert.Equal(t, updateAgency, f.Calls("b")[0].Query)

	assert.Equal(t, 1, f.Opens("a"), "update and insert share one connection")
}

func TestWriteSelfHealingBothMissing(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", upsert(0, 7))
	f.Set("b", upsert(0, 42))

	before := testutil.ToFloat64(metrics.SelfHealingInserts)
	params := sqlexec.Params{"code": "ACM", "name": "Acme"}
	res := r.WriteSelfHealing(context.Background(), "commercials", updateAgency, params, insertAgency, params)

	assert.True(t, res.AllSucceeded())
	require.Equal(t, 2, res.Total())
	assert.Equal(t, int64(7), res.Results[0].LastInsertID)
	assert.Equal(t, int64(42), res.Results[1].LastInsertID)
	assert.True(t, res.Results[0].Inserted && res.Results[1].Inserted)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.SelfHealingInserts))
}

func TestWriteSelfHealingInsertFailureIsolated(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b", "c")
	f.Set("a", upsert(0, 1))
	f.Set("b", sqlexectest.Behavior{Exec: func(query string, _ sqlexec.Params) (sqlexec.ExecResult, error) {
		if strings.HasPrefix(query, "UPDATE") {
			return sqlexec.ExecResult{}, nil
		}
		return sqlexec.ExecResult{}, errors.New("Error 1062: Duplicate entry 'ACM' for key 'code'")
	}})
	f.Set("c", sqlexectest.Behavior{OpenErr: errRefused})

	params := sqlexec.Params{"code": "ACM", "name": "Acme"}
	res := r.WriteSelfHealing(context.Background(), "commercials", updateAgency, params, insertAgency, params)

	assert.Equal(t, 1, res.SuccessCount())
	assert.True(t, res.AnySucceeded())
	b := res.Results[1]
	assert.False(t, b.OK)
	assert.False(t, b.Inserted)
	assert.Equal(t, apperrors.QueryExecutionFailure, apperrors.KindOf(b.Err))
	assert.Equal(t, apperrors.ConnectionFailure, apperrors.KindOf(res.Results[2].Err))
	assert.Len(t, f.Calls("a"), 2)
}

func TestWriteCallerCancellation(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", sqlexectest.Behavior{Delay: 10 * time.Second})
	f.Set("b", sqlexectest.Behavior{Delay: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := r.WriteFanOut(ctx, "commercials", "DELETE FROM spot", nil)
	require.Equal(t, 2, res.Total())
	assert.True(t, res.AllFailed())
	for _, a := range res.Results {
		assert.Equal(t, apperrors.Cancellation, apperrors.KindOf(a.Err))
	}
}

func TestProbe(t *testing.T) {
	r, f, _ := newRouter(t, "a", "b")
	f.Set("a", sqlexectest.Behavior{Columns: []string{"1"}, Rows: [][]any{{int64(1)}}})
	f.Set("b", sqlexectest.Behavior{OpenErr: errRefused})

	res := r.Probe(context.Background(), "commercials")
	require.Equal(t, 2, res.Total())
	assert.True(t, res.Results[0].OK)
	assert.False(t, res.Results[1].OK)
	assert.Equal(t, "SELECT 1", f.Calls("a")[0].Query)
}
