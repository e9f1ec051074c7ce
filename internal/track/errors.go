package track

import (
	"errors"
	"fmt"
)

// TrackError represents a failure of a tracking operation.
//
// Errors carry a code so callers can branch without string matching.
// Precondition violations (TRACKING_ACTIVE, HISTORY_NOT_EMPTY) surface
// to the public API as false returns, not exceptions: callers are
// expected to check state first.
type TrackError struct {
	// Code identifies the error category.
	Code TrackErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// TrackErrorCode categorizes tracking errors.
type TrackErrorCode string

const (
	// ErrCodeSourceUnavailable means no counter source could be queried.
	ErrCodeSourceUnavailable TrackErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeAuthorizationDenied means the counter source refused access.
	ErrCodeAuthorizationDenied TrackErrorCode = "AUTHORIZATION_DENIED"

	// ErrCodePersistenceCorrupt means a stored record failed to parse.
	ErrCodePersistenceCorrupt TrackErrorCode = "PERSISTENCE_CORRUPT"

	// ErrCodeTrackingActive means the operation requires an idle engine.
	ErrCodeTrackingActive TrackErrorCode = "TRACKING_ACTIVE"

	// ErrCodeHistoryNotEmpty means the operation requires empty history.
	ErrCodeHistoryNotEmpty TrackErrorCode = "HISTORY_NOT_EMPTY"

	// ErrCodeEngineClosed means the engine has been disposed.
	ErrCodeEngineClosed TrackErrorCode = "ENGINE_CLOSED"
)

// Error implements the error interface.
func (e *TrackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TrackError) Unwrap() error {
	return e.Err
}

// NewTrackError creates a TrackError with the given code and message.
func NewTrackError(code TrackErrorCode, message string) *TrackError {
	return &TrackError{Code: code, Message: message}
}

// WrapTrackError wraps an underlying error with a code and message.
func WrapTrackError(code TrackErrorCode, message string, err error) *TrackError {
	return &TrackError{Code: code, Message: message, Err: err}
}

// HasCode reports whether err is (or wraps) a TrackError with the code.
func HasCode(err error, code TrackErrorCode) bool {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
