package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
)

// Spot books a commercial into a slot of a station's log. A slot is
// identified by station, air date, hour and position within the hour.
type Spot struct {
	Station         string `json:"station"`
	AirDate         string `json:"air_date"`
	Hour            int    `json:"hour"`
	Position        int    `json:"position"`
	CommercialTitle string `json:"commercial_title"`
	AgencyCode      string `json:"agency_code"`
}

func validSlot(station, date string, hour int) error {
	if strings.TrimSpace(station) == "" {
		return fmt.Errorf("station is required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("air date %q: want YYYY-MM-DD", date)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23", hour)
	}
	return nil
}

func (s Spot) validate() error {
	if err := validSlot(s.Station, s.AirDate, s.Hour); err != nil {
		return err
	}
	if s.Position < 1 {
		return fmt.Errorf("position must be at least 1")
	}
	if strings.TrimSpace(s.CommercialTitle) == "" || strings.TrimSpace(s.AgencyCode) == "" {
		return fmt.Errorf("spot needs a commercial title and agency code")
	}
	return nil
}

func scanSpot(row sqlexec.Row) (Spot, error) {
	var s Spot
	err := row.Scan(&s.Station, dateScanner{&s.AirDate}, &s.Hour, &s.Position, &s.CommercialTitle, &s.AgencyCode)
	return s, err
}

// ListSpots returns the log of one station for one day in air order.
func (s *Service) ListSpots(ctx context.Context, station, date string) ([]Spot, error) {
	if err := validSlot(station, date, 0); err != nil {
		return nil, err
	}
	res := router.ReadMany(ctx, s.router, s.database,
		"SELECT station, air_date, hour, position, commercial_title, agency_code FROM spot "+
			"WHERE station = :station AND air_date = :date ORDER BY hour, position",
		sqlexec.Params{"station": station, "date": date}, scanSpot)
	return res.Value, readErr(res)
}

// ScheduleSpot books or replaces the commercial in a slot on every server.
func (s *Service) ScheduleSpot(ctx context.Context, sp Spot) (router.FanOutResult, error) {
	if err := sp.validate(); err != nil {
		return router.FanOutResult{}, err
	}
	params := sqlexec.Params{
		"station":  sp.Station,
		"date":     sp.AirDate,
		"hour":     sp.Hour,
		"position": sp.Position,
		"title":    sp.CommercialTitle,
		"agency":   sp.AgencyCode,
	}
	return s.upsert(ctx, "spot",
		"UPDATE spot SET commercial_title = :title, agency_code = :agency "+
			"WHERE station = :station AND air_date = :date AND hour = :hour AND position = :position",
		"INSERT INTO spot (station, air_date, hour, position, commercial_title, agency_code) "+
			"VALUES (:station, :date, :hour, :position, :title, :agency)",
		params)
}

// ClearHour removes every spot booked in one hour of a station's log.
func (s *Service) ClearHour(ctx context.Context, station, date string, hour int) (router.FanOutResult, error) {
	if err := validSlot(station, date, hour); err != nil {
		return router.FanOutResult{}, err
	}
	return s.exec(ctx, "clear hour",
		"DELETE FROM spot WHERE station = :station AND air_date = :date AND hour = :hour",
		sqlexec.Params{"station": station, "date": date, "hour": hour})
}
