// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn parses connection strings typed by users and builds driver
// connection strings from stored profiles.
package dsn

import (
	"fmt"
	"net"
	"strings"
)

// DBType is the server family a DSN was written for.
type DBType string

const (
	DBTypeMySQL      DBType = "mysql"
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeSQLite     DBType = "sqlite"
	DBTypeUnknown    DBType = "unknown"
)

// DSNInfo is the server-level content of a parsed DSN. Database is kept
// apart from the rest since a profile addresses a server, not a database.
type DSNInfo struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Params   map[string]string
	// Original is the DSN as typed, password included.
	Original string
}

// String describes the target without the password, for logs and prompts.
func (d *DSNInfo) String() string {
	addr := d.Host
	if d.Port != "" {
		addr = net.JoinHostPort(d.Host, d.Port)
	}
	return fmt.Sprintf("%s %s@%s/%s", d.Type, d.User, addr, d.Database)
}

// Resolver handles the DSN dialect of one server family.
type Resolver interface {
	Parse(dsn string) (*DSNInfo, error)
	// Normalize renders info in the canonical form for its family.
	Normalize(info *DSNInfo) (string, error)
	Validate(dsn string) error
}

// ParseError explains why a DSN was rejected and, when possible, how to fix it.
type ParseError struct {
	DSN    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("invalid DSN: ")
	b.WriteString(e.Reason)
	if e.Hint != "" {
		b.WriteString(" (")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

func NewParseError(dsn, reason, hint string) *ParseError {
	return &ParseError{DSN: dsn, Reason: reason, Hint: hint}
}
