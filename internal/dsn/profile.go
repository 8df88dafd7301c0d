// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"airplan/cli/internal/profile"
)

// database/sql driver names registered by the imported drivers.
const (
	DriverNameMySQL    = "mysql"
	DriverNamePostgres = "pgx"
	DriverNameSQLite   = "sqlite"
)

var reDatabaseName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateDatabaseName rejects names that could escape identifier quoting or
// a sqlite data directory.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if !reDatabaseName.MatchString(name) {
		return fmt.Errorf("invalid database name %q: only letters, digits and underscores are allowed", name)
	}
	return nil
}

// ForProfile returns the database/sql driver name and data source for
// opening database on the server described by p.
func ForProfile(p profile.Profile, database string) (driverName, dataSource string, err error) {
	if err := ValidateDatabaseName(database); err != nil {
		return "", "", err
	}
	p = p.WithDefaults()

	switch p.Driver {
	case profile.DriverMySQL:
		return DriverNameMySQL, MySQLConfig(p, database).FormatDSN(), nil
	case profile.DriverPostgres:
		return DriverNamePostgres, postgresURL(p, database), nil
	case profile.DriverSQLite:
		return DriverNameSQLite, sqlitePath(p, database), nil
	default:
		return "", "", fmt.Errorf("profile %q: unsupported driver %q", p.Name, p.Driver)
	}
}

// MySQLConfig builds the driver config for p. ClientFoundRows makes UPDATE
// report matched rows, so an update that leaves values unchanged still counts
// as having found the row.
func MySQLConfig(p profile.Profile, database string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = p.Address()
	cfg.DBName = database
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	cfg.Timeout = p.Timeout
	cfg.ReadTimeout = p.Timeout
	cfg.WriteTimeout = p.Timeout

	switch p.TLSMode {
	case profile.TLSDisabled:
		cfg.TLSConfig = "false"
	case profile.TLSRequired:
		cfg.TLSConfig = "true"
	case profile.TLSSkipVerify:
		cfg.TLSConfig = "skip-verify"
	default:
		cfg.TLSConfig = "preferred"
	}
	return cfg
}

func postgresURL(p profile.Profile, database string) string {
	q := url.Values{}
	switch p.TLSMode {
	case profile.TLSDisabled:
		q.Set("sslmode", "disable")
	case profile.TLSRequired, profile.TLSSkipVerify:
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", "prefer")
	}
	q.Set("connect_timeout", strconv.Itoa(int(p.Timeout.Seconds())))

	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Address(),
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqlitePath(p profile.Profile, database string) string {
	path := filepath.Join(p.Host, database+".db")
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.ToSlash(path), p.Timeout.Milliseconds())
}

// ProfileFromInfo turns a parsed DSN into a profile named name. The database
// part of the DSN is returned separately since profiles are server-scoped.
func ProfileFromInfo(name string, info *DSNInfo) (profile.Profile, string, error) {
	if info == nil {
		return profile.Profile{}, "", fmt.Errorf("nil DSN info")
	}

	p := profile.Profile{
		Name:     name,
		Host:     info.Host,
		User:     info.User,
		Password: info.Password,
	}
	switch info.Type {
	case DBTypeMySQL:
		p.Driver = profile.DriverMySQL
		p.TLSMode = tlsFromParam(info.Params["tls"])
	case DBTypePostgreSQL:
		p.Driver = profile.DriverPostgres
		p.TLSMode = tlsFromParam(info.Params["sslmode"])
	default:
		return profile.Profile{}, "", fmt.Errorf("unsupported database type %q", info.Type)
	}
	if info.Port != "" {
		port, err := strconv.Atoi(info.Port)
		if err != nil {
			return profile.Profile{}, "", fmt.Errorf("invalid port %q: %w", info.Port, err)
		}
		p.Port = port
	}

	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return profile.Profile{}, "", err
	}
	return p, info.Database, nil
}

func tlsFromParam(v string) profile.TLSMode {
	switch strings.ToLower(v) {
	case "false", "disable", "disabled":
		return profile.TLSDisabled
	case "true", "require", "required", "verify-ca", "verify-full":
		return profile.TLSRequired
	case "skip-verify":
		return profile.TLSSkipVerify
	default:
		return profile.TLSPreferred
	}
}
