package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failure categories the store reports.
// Callers switch on the kind to separate recoverable failures (validation,
// conflicts) from fatal ones (boundary violations, storage faults).
type ErrorKind string

const (
	// KindValidation marks schema or business-rule failures. Never retried.
	KindValidation ErrorKind = "validation"

	// KindSecretDetected marks writes blocked by the secret scanner.
	// The message never repeats the detected secret.
	KindSecretDetected ErrorKind = "secret_detected"

	// KindEvidenceInvalid marks malformed or unverifiable evidence.
	KindEvidenceInvalid ErrorKind = "evidence_invalid"

	// KindConflict marks a duplicate on create. Import collisions are
	// reported in the import report instead of raised.
	KindConflict ErrorKind = "conflict"

	// KindQuery marks malformed query filters.
	KindQuery ErrorKind = "query"

	// KindStorage wraps exhausted retries and unexpected backend faults.
	KindStorage ErrorKind = "storage"

	// KindBoundaryViolation marks a path escaping the workspace root.
	// Security-critical: always fatal, never retried.
	KindBoundaryViolation ErrorKind = "boundary_violation"
)

// Error is the structured error type shared by all store components.
type Error struct {
	// Kind categorizes the failure.
	Kind ErrorKind

	// Op names the operation that failed (e.g. "store.create").
	Op string

	// Msg is a human-readable description. It never echoes secrets.
	Msg string

	// Details carries the accumulated per-field or per-item messages,
	// e.g. the full validator error list.
	Details []string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a structured error of the given kind.
func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WrapError wraps err into a structured error of the given kind.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the error kind, or "" if err is not a store error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewValidationError builds a validation error carrying the full
// accumulated error list from the validator.
func NewValidationError(op string, details []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Msg:     fmt.Sprintf("%d validation error(s)", len(details)),
		Details: details,
	}
}

// NewConflictError builds a duplicate-on-create error.
func NewConflictError(op, existingID string, subject string) *Error {
	return &Error{
		Kind: KindConflict,
		Op:   op,
		Msg:  fmt.Sprintf("duplicate of entry %s (subject %q)", existingID, subject),
	}
}
