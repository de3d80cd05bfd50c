package shared

import "errors"

// ErrorKind classifies a domain error for callers that need to react to it
// (retry, map to a transport status, surface to a user).
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindConflict               ErrorKind = "conflict"
	KindReconciliationRequired ErrorKind = "reconciliation_required"
	KindNotFound               ErrorKind = "not_found"
	KindPersistence            ErrorKind = "persistence"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error carrying extra details
func (e *DomainError) WithDetails(details any) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewValidationError creates an error for malformed input. No state is changed.
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewConflictError creates an error for a concurrent modification. The caller
// may retry the whole operation.
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// NewNotFoundError creates an error for a missing or foreign-tenant resource
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindNotFound}
}

// NewPersistenceError wraps a storage failure. The transaction has been rolled back.
func NewPersistenceError(message string, cause error) *DomainError {
	return &DomainError{Code: "PERSISTENCE_ERROR", Message: message, Kind: KindPersistence, cause: cause}
}

// KindOf returns the kind of err, or an empty kind for non-domain errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsConflict reports whether err signals a concurrent modification
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsNotFound reports whether err signals a missing resource
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation reports whether err signals invalid input
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewValidationError("INVALID_STATE", "Operation not allowed in current state")
)
