package types

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

var (
	ErrNotFound         = NotFoundError{}
	ErrFormLinkNotFound = NotFoundError{Resource: "form link"}
	ErrUserNotFound     = NotFoundError{Resource: "user"}

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenTaken   = errors.New("form link token already exists")
)

// ValidationError is returned for malformed or incomplete client input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthError carries a user facing reason for a failed credential check.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

func Unauthorized(msg string) error {
	return &AuthError{Message: msg}
}

// ConflictError is returned when a write collides with existing data, such as
// a duplicate username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

const (
	OpDraft  = "draft"
	OpSubmit = "submit"
)

// StateError is returned when a form link's lifecycle status forbids the
// requested operation.
type StateError struct {
	Token  string
	Status LinkStatus
	Op     string
}

func (e *StateError) Error() string {
	switch {
	case e.Op == OpDraft:
		return fmt.Sprintf("Form is already %s and cannot be updated as draft.", e.Status)
	case e.Status == LinkStatusExpired:
		return "This form link has expired."
	default:
		return "This form has already been submitted."
	}
}

// UpstreamError wraps failures of a dependency the service does not control,
// such as the geocoding provider or the report renderer.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
