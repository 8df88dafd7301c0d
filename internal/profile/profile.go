// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package profile describes the database servers airplan talks to.
//
// A Profile is one configured connection target. The ordered list of profiles
// decides read priority (the first few are raced) and write membership (every
// profile receives every write). The list is owned by a Store and re-read by the
// router at the start of each call, so edits take effect without a restart.
package profile

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Driver names the database/sql driver used for a profile.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	// DriverSQLite treats Host as a directory holding one <database>.db file per database.
	DriverSQLite Driver = "sqlite"
)

// TLSMode controls transport security for a profile.
type TLSMode string

const (
	TLSDisabled   TLSMode = "disabled"
	TLSPreferred  TLSMode = "preferred"
	TLSRequired   TLSMode = "required"
	TLSSkipVerify TLSMode = "skip-verify"
)

// DefaultTimeout is used when a profile does not set one.
const DefaultTimeout = 30 * time.Second

// Profile is one configured connection target.
type Profile struct {
	Name     string
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string
	TLSMode  TLSMode
	// Timeout bounds connect and every statement issued for this profile.
	Timeout time.Duration
	Default bool
	Order   int
}

// Static is a fixed profile list, mostly useful in tests.
type Static []Profile

// Profiles returns a copy of the list.
func (s Static) Profiles(ctx context.Context) ([]Profile, error) {
	return slices.Clone(s), nil
}

// WithDefaults fills zero-valued fields with their defaults.
func (p Profile) WithDefaults() Profile {
	if p.Driver == "" {
		p.Driver = DriverMySQL
	}
	if p.Port == 0 {
		switch p.Driver {
		case DriverMySQL:
			p.Port = 3306
		case DriverPostgres:
			p.Port = 5432
		}
	}
	if p.TLSMode == "" {
		p.TLSMode = TLSPreferred
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	return p
}

// Address returns host:port, or the directory for sqlite profiles.
func (p Profile) Address() string {
	if p.Driver == DriverSQLite {
		return p.Host
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Validate reports the first problem that would stop the profile from connecting.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile %q: host is required", p.Name)
	}
	switch p.Driver {
	case "", DriverMySQL, DriverPostgres:
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("profile %q: invalid port %d", p.Name, p.Port)
		}
		if strings.TrimSpace(p.User) == "" {
			return fmt.Errorf("profile %q: user is required", p.Name)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("profile %q: unsupported driver %q", p.Name, p.Driver)
	}
	switch p.TLSMode {
	case "", TLSDisabled, TLSPreferred, TLSRequired, TLSSkipVerify:
	default:
		return fmt.Errorf("profile %q: unsupported tls mode %q", p.Name, p.TLSMode)
	}
	return nil
}

// Sort orders profiles by Order, keeping file order for equal values.
func Sort(ps []Profile) {
	slices.SortStableFunc(ps, func(a, b Profile) int { return a.Order - b.Order })
}

// DefaultOf returns the first profile flagged as default.
func DefaultOf(ps []Profile) (Profile, bool) {
	for _, p := range ps {
		if p.Default {
			return p, true
		}
	}
	return Profile{}, false
}
