// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. The router uses these kinds to tell a replica that could
// not be reached apart from one that rejected a statement, and to recognise the benign
// cancellation of a losing read.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// so callers can still reach driver errors with the standard errors.As.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// NoProfilesConfigured indicates there is no database profile to talk to.
	NoProfilesConfigured Kind = "no_profiles_configured"
	// ConnectionFailure indicates a profile could not be reached or authenticated.
	ConnectionFailure Kind = "connection_failure"
	// QueryExecutionFailure indicates a statement failed on a reachable profile.
	QueryExecutionFailure Kind = "query_execution_failure"
	// Cancellation indicates an attempt was abandoned through its context.
	Cancellation Kind = "cancellation"
	// AllProfilesFailed indicates every attempted profile failed a read.
	AllProfilesFailed Kind = "all_profiles_failed"
	// ProfileStore indicates the profile list could not be loaded.
	ProfileStore Kind = "profile_store"
	// Unknown is returned by KindOf for errors that carry no kind.
	Unknown Kind = "unknown"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is an *E of the same kind. It lets sentinel values
// such as ErrNoProfiles match wrapped errors of the same category.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
