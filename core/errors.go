package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Workflow errors.
//
// Every status-bearing record (application, attendance penalty, contribution)
// moves through a closed transition table. These errors are the only ways a
// requested transition can be turned down; the API layer maps each to a
// distinct HTTP status.

// InvalidTransitionError indicates the requested status is not reachable from
// the record's current status.
type InvalidTransitionError struct {
	RecordType string
	Current    string
	Requested  string
}

func (err *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %q -> %q", err.RecordType, err.Current, err.Requested)
}

// UnauthorizedTransitionError indicates the transition exists but the acting
// role may not trigger it.
type UnauthorizedTransitionError struct {
	RecordType string
	Requested  string
	Actor      string
}

func (err *UnauthorizedTransitionError) Error() string {
	return fmt.Sprintf("%s: role %q may not request %q", err.RecordType, err.Actor, err.Requested)
}

// MissingRequiredFieldError indicates an unmet transition guard; Field names
// the first missing requirement.
type MissingRequiredFieldError struct {
	Field string
}

func (err *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// AlreadyTerminalError indicates a mutation was attempted on a record whose
// status admits no further transitions.
type AlreadyTerminalError struct {
	RecordType string
	Status     string
}

func (err *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("%s: status %q is terminal", err.RecordType, err.Status)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
