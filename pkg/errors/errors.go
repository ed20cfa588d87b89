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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid register number or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrUnrecognizedGrade rejects letter grades outside the supported scale.
	// Recovered per record during ingestion: the record is skipped, the batch continues.
	ErrUnrecognizedGrade = New("UNRECOGNIZED_GRADE", http.StatusUnprocessableEntity, "unrecognized letter grade")
	// ErrDuplicateRecord marks a course/semester pair already stored for the user.
	// Surfaced as a rejection count, never raised past the ingestion boundary.
	ErrDuplicateRecord = New("DUPLICATE_RECORD", http.StatusConflict, "grade already recorded for course and semester")
	// ErrStorageFailure aborts the current batch and rolls it back.
	ErrStorageFailure = New("STORAGE_FAILURE", http.StatusInternalServerError, "grade storage failed")
	// ErrExtractionFailed covers OCR collaborator failures on uploaded images.
	ErrExtractionFailed = New("EXTRACTION_FAILED", http.StatusUnprocessableEntity, "could not extract grades from image")
	// ErrInvalidFile rejects uploads with unsupported type or size.
	ErrInvalidFile = New("INVALID_FILE", http.StatusBadRequest, "invalid upload file")

	// ErrCacheMiss is an internal sentinel, never returned to clients.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
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
