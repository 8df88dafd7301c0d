package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airplan/cli/internal/profile"
	"airplan/cli/internal/retry"
	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
	"airplan/cli/internal/sqlexec/sqlexectest"
)

var quiet = slog.New(slog.DiscardHandler)

func newFakeService(t *testing.T, opts ...Option) (*Service, *sqlexectest.Factory) {
	t.Helper()
	ps := profile.Static{
		{Name: "studio-a", Host: "10.0.0.5", User: "sched"},
		{Name: "studio-b", Host: "10.0.0.6", User: "sched"},
	}
	f := sqlexectest.New()
	r := router.New(ps, f, router.WithLogger(quiet))
	return New(r, "commercials", append([]Option{WithLogger(quiet)}, opts...)...), f
}

func TestListAgenciesMapsNullColumns(t *testing.T) {
	s, f := newFakeService(t)
	rows := sqlexectest.Behavior{
		Columns: []string{"id", "code", "name", "contact", "phone"},
		Rows: [][]any{
			{int64(1), "ACM", "Acme Media", "Jo Ray", nil},
			{int64(2), "BLU", "Blue Sky", nil, "555-0101"},
		},
	}
	f.Set("studio-a", rows).Set("studio-b", rows)

	got, err := s.ListAgencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Agency{
		{ID: 1, Code: "ACM", Name: "Acme Media", Contact: "Jo Ray"},
		{ID: 2, Code: "BLU", Name: "Blue Sky", Phone: "555-0101"},
	}, got)
}

func TestGetAgencyNotFound(t *testing.T) {
	s, _ := newFakeService(t)
	_, found, err := s.GetAgency(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadsReportDisconnected(t *testing.T) {
	s, f := newFakeService(t)
	down := sqlexectest.Behavior{OpenErr: errors.New("connection refused")}
	f.Set("studio-a", down).Set("studio-b", down)

	_, err := s.ListAgencies(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = s.CountCommercials(context.Background(), "ACM")
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = s.ListSpots(context.Background(), "KXYZ", "2026-10-18")
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestNoProfilesIsNotDisconnected(t *testing.T) {
	r := router.New(profile.Static{}, sqlexectest.New(), router.WithLogger(quiet))
	s := New(r, "commercials", WithLogger(quiet))

	_, err := s.ListAgencies(context.Background())
	assert.ErrorIs(t, err, router.ErrNoProfiles)
	_, err = s.SaveAgency(context.Background(), Agency{Code: "ACM", Name: "Acme"})
	assert.ErrorIs(t, err, router.ErrNoProfiles)
}

func TestSaveAgencyValidation(t *testing.T) {
	s, f := newFakeService(t)
	_, err := s.SaveAgency(context.Background(), Agency{Name: "Nameless"})
	assert.Error(t, err)
	_, err = s.SaveCommercial(context.Background(), Commercial{AgencyCode: "ACM", Title: "Fall sale"})
	assert.Error(t, err)
	_, err = s.ScheduleSpot(context.Background(), Spot{Station: "KXYZ", AirDate: "18/10/2026", Hour: 7, Position: 1, CommercialTitle: "x", AgencyCode: "ACM"})
	assert.Error(t, err)
	_, err = s.ClearHour(context.Background(), "KXYZ", "2026-10-18", 24)
	assert.Error(t, err)
	assert.Zero(t, f.TotalOpens())
}

func TestSaveAgencyParams(t *testing.T) {
	s, f := newFakeService(t)
	f.Set("studio-a", sqlexectest.Behavior{ExecResult: sqlexec.ExecResult{RowsAffected: 1}})
	f.Set("studio-b", sqlexectest.Behavior{ExecResult: sqlexec.ExecResult{RowsAffected: 1}})

	res, err := s.SaveAgency(context.Background(), Agency{Code: "ACM", Name: "Acme"})
	require.NoError(t, err)
	assert.True(t, res.AllSucceeded())

	calls := f.Calls("studio-a")
	require.Len(t, calls, 1)
	assert.Equal(t, sqlexec.Params{"code": "ACM", "name": "Acme", "contact": nil, "phone": nil}, calls[0].Params)
}

func TestWritePartialAndRejected(t *testing.T) {
	s, f := newFakeService(t)
	f.Set("studio-b", sqlexectest.Behavior{OpenErr: errors.New("connection refused")})

	res, err := s.DeleteAgency(context.Background(), "ACM")
	require.NoError(t, err, "a write accepted by one server is not an error")
	assert.Equal(t, 1, res.FailureCount())

	f.Set("studio-a", sqlexectest.Behavior{OpenErr: errors.New("connection refused")})
	res, err = s.DeleteAgency(context.Background(), "ACM")
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, res.AllFailed())
}

func TestWriteRetriesWhenEveryServerRejects(t *testing.T) {
	s, f := newFakeService(t, WithRetry(retry.Policy{Retries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}))
	down := sqlexectest.Behavior{OpenErr: errors.New("connection refused")}
	f.Set("studio-a", down).Set("studio-b", down)

	_, err := s.ClearHour(context.Background(), "KXYZ", "2026-10-18", 7)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 3, f.Opens("studio-a"))
}

func TestDateScanner(t *testing.T) {
	var s string
	require.NoError(t, dateScanner{&s}.Scan(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-10-18", s)
	require.NoError(t, dateScanner{&s}.Scan("2026-10-19 00:00:00"))
	assert.Equal(t, "2026-10-19", s)
	require.NoError(t, dateScanner{&s}.Scan([]byte("2026-10-20")))
	assert.Equal(t, "2026-10-20", s)
	assert.Error(t, dateScanner{&s}.Scan(3.5))
}
