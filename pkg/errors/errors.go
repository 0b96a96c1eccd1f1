package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrConflictDetected   = New("CONFLICT_DETECTED", http.StatusConflict, "candidate slot collides with an existing session")
	ErrDeadlineExceeded   = New("DEADLINE_EXCEEDED", http.StatusUnprocessableEntity, "date falls beyond the enrollment's effective end date")
	ErrInvalidTransition  = New("INVALID_TRANSITION", http.StatusConflict, "transition not permitted from the current state")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured payload fields.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// DeadlineExceeded builds the structured deadline rejection carrying the
// computed effective end date so callers can offer "Request Extension".
func DeadlineExceeded(enrollmentID string, effectiveEnd time.Time) *Error {
	return WithDetails(ErrDeadlineExceeded, map[string]interface{}{
		"enrollment_id":      enrollmentID,
		"effective_end_date": effectiveEnd.Format("2006-01-02"),
	})
}

// ConflictDetected builds the collision rejection carrying the colliding
// session's identity for caller display.
func ConflictDetected(sessionIDs []string) *Error {
	return WithDetails(ErrConflictDetected, map[string]interface{}{
		"colliding_session_ids": sessionIDs,
	})
}
