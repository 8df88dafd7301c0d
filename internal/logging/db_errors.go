// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pterm/pterm"
)

// DBErrorType represents the category of a database error
type DBErrorType int

const (
	DBErrorUnknown DBErrorType = iota
	DBErrorNetwork
	DBErrorAuth
	DBErrorTimeout
	DBErrorUnknownDatabase
	DBErrorStatement
	DBErrorConstraint
	DBErrorCanceled
)

func (t DBErrorType) String() string {
	switch t {
	case DBErrorNetwork:
		return "network"
	case DBErrorAuth:
		return "auth"
	case DBErrorTimeout:
		return "timeout"
	case DBErrorUnknownDatabase:
		return "unknown_database"
	case DBErrorStatement:
		return "statement"
	case DBErrorConstraint:
		return "constraint"
	case DBErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ParseDBError categorizes an error returned by one of the SQL drivers.
func ParseDBError(err error) DBErrorType {
	if err == nil {
		return DBErrorUnknown
	}
	if errors.Is(err, context.Canceled) {
		return DBErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DBErrorTimeout
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1698:
			return DBErrorAuth
		case 1049:
			return DBErrorUnknownDatabase
		case 1205, 3024:
			return DBErrorTimeout
		case 1062, 1216, 1217, 1451, 1452, 1048:
			return DBErrorConstraint
		case 1040, 1053, 1152, 1153:
			return DBErrorNetwork
		default:
			return DBErrorStatement
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return DBErrorAuth
		case pgErr.Code == "3D000":
			return DBErrorUnknownDatabase
		case pgErr.Code == "57014":
			return DBErrorTimeout
		case strings.HasPrefix(pgErr.Code, "23"):
			return DBErrorConstraint
		case strings.HasPrefix(pgErr.Code, "08"):
			return DBErrorNetwork
		default:
			return DBErrorStatement
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return DBErrorTimeout
		}
		return DBErrorNetwork
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return DBErrorNetwork
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"),
		strings.Contains(lower, "connection reset"), strings.Contains(lower, "broken pipe"):
		return DBErrorNetwork
	case strings.Contains(lower, "i/o timeout"), strings.Contains(lower, "timeout"):
		return DBErrorTimeout
	case strings.Contains(lower, "access denied"), strings.Contains(lower, "authentication"):
		return DBErrorAuth
	}
	return DBErrorUnknown
}

// DescribeDBError returns a one-line, credential-free explanation of err.
func DescribeDBError(err error) string {
	if err == nil {
		return ""
	}
	var hint string
	switch ParseDBError(err) {
	case DBErrorNetwork:
		hint = "server unreachable"
	case DBErrorAuth:
		hint = "login rejected, check the profile user and password"
	case DBErrorTimeout:
		hint = "timed out, the server may be overloaded"
	case DBErrorUnknownDatabase:
		hint = "database does not exist on this server"
	case DBErrorStatement:
		hint = "statement rejected by the server"
	case DBErrorConstraint:
		hint = "statement violates a constraint"
	case DBErrorCanceled:
		hint = "canceled"
	default:
		hint = "unexpected error"
	}
	return hint + " (" + Mask(err.Error()) + ")"
}

// FormatDBError formats a failed server in a user-friendly way.
func FormatDBError(server string, err error) string {
	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(server))
	builder.WriteString(": ")
	builder.WriteString(DescribeDBError(err))
	return builder.String()
}
