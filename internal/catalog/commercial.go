package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
)

// Commercial is one spot recording, keyed by agency and title.
type Commercial struct {
	ID          int64  `json:"id"`
	AgencyCode  string `json:"agency_code"`
	Title       string `json:"title"`
	DurationSec int    `json:"duration_sec"`
	AudioFile   string `json:"audio_file,omitempty"`
}

func (c Commercial) validate() error {
	switch {
	case strings.TrimSpace(c.AgencyCode) == "":
		return fmt.Errorf("commercial agency code is required")
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("commercial title is required")
	case c.DurationSec <= 0:
		return fmt.Errorf("commercial %q: duration must be positive", c.Title)
	}
	return nil
}

func scanCommercial(row sqlexec.Row) (Commercial, error) {
	var c Commercial
	var audio sql.NullString
	if err := row.Scan(&c.ID, &c.AgencyCode, &c.Title, &c.DurationSec, &audio); err != nil {
		return Commercial{}, err
	}
	c.AudioFile = audio.String
	return c, nil
}

// ListCommercials returns the commercials of one agency, or all of them when
// agencyCode is empty.
func (s *Service) ListCommercials(ctx context.Context, agencyCode string) ([]Commercial, error) {
	query := "SELECT id, agency_code, title, duration_sec, audio_file FROM commercial"
	var params sqlexec.Params
	if agencyCode != "" {
		query += " WHERE agency_code = :agency"
		params = sqlexec.Params{"agency": agencyCode}
	}
	query += " ORDER BY agency_code, title"

	res := router.ReadMany(ctx, s.router, s.database, query, params, scanCommercial)
	return res.Value, readErr(res)
}

// CountCommercials counts the commercials of one agency.
func (s *Service) CountCommercials(ctx context.Context, agencyCode string) (int64, error) {
	res := router.ReadScalar[int64](ctx, s.router, s.database,
		"SELECT COUNT(*) FROM commercial WHERE agency_code = :agency",
		sqlexec.Params{"agency": agencyCode})
	return res.Value, readErr(res)
}

// SaveCommercial creates or updates a commercial on every server.
func (s *Service) SaveCommercial(ctx context.Context, c Commercial) (router.FanOutResult, error) {
	if err := c.validate(); err != nil {
		return router.FanOutResult{}, err
	}
	params := sqlexec.Params{
		"agency":   c.AgencyCode,
		"title":    c.Title,
		"duration": c.DurationSec,
		"audio":    nullable(c.AudioFile),
	}
	return s.upsert(ctx, "commercial "+c.Title,
		"UPDATE commercial SET duration_sec = :duration, audio_file = :audio WHERE agency_code = :agency AND title = :title",
		"INSERT INTO commercial (agency_code, title, duration_sec, audio_file) VALUES (:agency, :title, :duration, :audio)",
		params)
}
