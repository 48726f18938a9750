// Package errs defines the error kinds surfaced to API callers.
//
// Every error returned by the service layer either is, or wraps, one of the
// kind sentinels below. Handlers translate kinds into HTTP statuses; anything
// that does not match a kind is treated as an internal failure.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
)

type Reason string

const (
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonRoleNotPermitted       Reason = "role_not_permitted"
	ReasonAdminCannotCreatePeer  Reason = "admin_cannot_create_peer"
	ReasonInvalidRole            Reason = "invalid_role"
	ReasonNotOwner               Reason = "not_owner"
	ReasonInvariantViolation     Reason = "invariant_violation"
	ReasonValidation             Reason = "validation"
)

type Error struct {
	Kind    error
	Reason  Reason
	Message string
	Entity  string
	ID      string
	Field   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Kind)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Forbidden(reason Reason, message string) *Error {
	return &Error{Kind: ErrForbidden, Reason: reason, Message: message}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, Message: message}
}

// Invalid reports a malformed or missing field.
func Invalid(field, message string) *Error {
	return &Error{Kind: ErrBadRequest, Reason: ReasonValidation, Field: field, Message: message}
}

func Invariant(message string) *Error {
	return &Error{Kind: ErrBadRequest, Reason: ReasonInvariantViolation, Message: message}
}

// Unauthenticated never carries detail about why verification failed.
func Unauthenticated() *Error {
	return &Error{Kind: ErrUnauthenticated, Message: "unauthorized"}
}

// ReasonOf returns the reason attached to err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
