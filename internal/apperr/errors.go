// Package apperr defines the error taxonomy shared by every pipeline stage.
package apperr

import (
	"errors"
	"fmt"
)

// Type categorizes a failure the way a worker needs to decide what to do
// next: retry, fall through, or abort the run.
type Type string

const (
	// TypeConflict is a transient optimistic-concurrency conflict from the
	// graph store or the canonical-id ledger. Callers retry with backoff.
	TypeConflict Type = "CONFLICT"
	// TypeTransient is a transient transport failure (network, throttling)
	// from any external collaborator. Callers retry with backoff, capped.
	TypeTransient Type = "TRANSIENT"
	// TypeMalformed marks an unparseable extraction/summarization record.
	// Callers skip the record and continue the batch.
	TypeMalformed Type = "MALFORMED"
	// TypeMissingRef marks a reference (e.g. a resolution-map entry) that
	// was expected but absent. Callers fall through to a default.
	TypeMissingRef Type = "MISSING_REF"
	// TypeSchemaMismatch is fatal: the run must abort before any writes.
	TypeSchemaMismatch Type = "SCHEMA_MISMATCH"
	// TypeConfig marks a fatal configuration error (credentials, missing
	// index, bad dimension). Only these, plus TypeSchemaMismatch, abort a
	// run; everything else degrades to a recorded outcome.
	TypeConfig Type = "CONFIG"
	// TypeInternal is an unclassified failure.
	TypeInternal Type = "INTERNAL"
)

// Error wraps an underlying error with a Type so that workers can branch
// on apperr.As / apperr.Is instead of matching on error strings, except at
// the one place (the graph driver's ConcurrentModification message) where
// the underlying collaborator genuinely gives us nothing else to go on.
type Error struct {
	Type    Type
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(t Type, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

func Conflict(message string, err error) *Error      { return New(TypeConflict, message, err) }
func Transient(message string, err error) *Error     { return New(TypeTransient, message, err) }
func Malformed(message string, err error) *Error     { return New(TypeMalformed, message, err) }
func MissingRef(message string) *Error                { return New(TypeMissingRef, message, nil) }
func SchemaMismatch(message string, err error) *Error { return New(TypeSchemaMismatch, message, err) }
func Config(message string, err error) *Error        { return New(TypeConfig, message, err) }
func Internal(message string, err error) *Error       { return New(TypeInternal, message, err) }

// Is reports whether err (or anything it wraps) is an *Error of type t.
func Is(err error, t Type) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

// As extracts the *Error wrapped by err, if any, for callers that need
// its Type rather than just testing against one.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Fatal reports whether an error must abort a run outright. Only
// configuration errors and schema mismatches do; everything else degrades
// to a recorded outcome and the run continues.
func Fatal(err error) bool {
	return Is(err, TypeConfig) || Is(err, TypeSchemaMismatch)
}
