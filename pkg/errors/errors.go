package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// Is reports whether target carries the same code, so clones match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache entry not found")
)

// Assignment errors. Each condition keeps its own code so clients can tell them apart.
var (
	ErrEventNotFound      = New("EVENT_NOT_FOUND", http.StatusNotFound, "event not found")
	ErrShiftNotFound      = New("SHIFT_NOT_FOUND", http.StatusNotFound, "shift not found")
	ErrVolunteerNotFound  = New("VOLUNTEER_NOT_FOUND", http.StatusNotFound, "volunteer not found")
	ErrAssignmentNotFound = New("ASSIGNMENT_NOT_FOUND", http.StatusNotFound, "volunteer has not joined this event")

	ErrShiftFull = New("SHIFT_FULL", http.StatusConflict, "this shift is full")
	ErrRoleFull  = New("ROLE_FULL", http.StatusConflict, "all slots for this role are taken")
	ErrEventFull = New("EVENT_FULL", http.StatusConflict, "maximum number of volunteers reached for this event")

	ErrAssignedElsewhere = New("ASSIGNED_ELSEWHERE", http.StatusConflict, "volunteer is already assigned to another shift in this event")
	ErrAlreadyJoined     = New("ALREADY_JOINED", http.StatusConflict, "volunteer has already joined this event")
	ErrAlreadyAssigned   = New("ALREADY_ASSIGNED", http.StatusConflict, "volunteer is already assigned to this shift")

	ErrEventMismatch     = New("EVENT_MISMATCH", http.StatusUnprocessableEntity, "shift does not belong to this event")
	ErrEventClosed       = New("EVENT_CLOSED", http.StatusConflict, "event is not accepting volunteers")
	ErrAssignmentClosed  = New("ASSIGNMENT_CLOSED", http.StatusConflict, "assignment is already checked out or marked no-show")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")

	ErrStoreUnavailable = New("STORE_UNAVAILABLE", http.StatusServiceUnavailable, "assignment store unavailable, please retry")
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

// Unavailable wraps a transient store failure.
func Unavailable(err error, message string) *Error {
	if message == "" {
		message = ErrStoreUnavailable.Message
	}
	return Wrap(err, ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, message)
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsCapacity reports whether err is one of the capacity exceeded conditions.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrShiftFull) || errors.Is(err, ErrRoleFull) || errors.Is(err, ErrEventFull)
}
