// Package apperr defines the failure kinds shared by repositories, the
// authorization engine and the services. The HTTP layer maps kinds to status
// codes; nothing below it knows about HTTP.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kinds. Every error returned across a package boundary wraps one of these.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidState      = errors.New("invalid state")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateConflict = errors.New("duplicate")
	ErrValidation        = errors.New("validation failed")
	ErrExpired           = errors.New("expired")
	ErrConflict          = errors.New("conflicting concurrent update")
	ErrUnauthenticated   = errors.New("authentication required")
)

// Error is a specific failure that belongs to a kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Specific failures.
var (
	ErrAlreadyAccepted     = New(ErrInvalidState, "invitation has already been accepted")
	ErrDuplicatePending    = New(ErrDuplicateConflict, "an invitation has already been sent to this email")
	ErrAlreadyMember       = New(ErrDuplicateConflict, "user is already assigned to this location")
	ErrAlreadyAssigned     = New(ErrInvalidState, "you are already assigned to a location")
	ErrDuplicateMembership = New(ErrDuplicateConflict, "membership already exists")
	ErrEmailMismatch       = New(ErrAccessDenied, "this invitation was sent to a different email address")
	ErrLocationInUse       = New(ErrInvalidState, "location still has members or reports")
	ErrInvitationExpired   = New(ErrExpired, "invitation has expired")
	ErrInvalidCredentials  = New(ErrUnauthenticated, "invalid credentials")
	ErrInviteCodeTaken     = New(ErrConflict, "invite code is already in use")
)

// Denied builds an access-denied error with a reason.
func Denied(reason string) *Error {
	return New(ErrAccessDenied, reason)
}

// InvalidState builds an invalid-state error with a message.
func InvalidState(format string, args ...any) *Error {
	return New(ErrInvalidState, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error for an entity.
func NotFound(entity string) *Error {
	return New(ErrNotFound, entity+" not found")
}

// ValidationError carries field -> failed rule.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a single-field validation error.
func Invalid(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// IsNotFound reports whether err is of the not-found kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
