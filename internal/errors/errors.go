package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cogbench error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404, also private artifacts on public paths
	ErrConflict        ErrorCode = "CONFLICT"         // 409
	ErrSourceTooLarge  ErrorCode = "SOURCE_TOO_LARGE" // 413
	ErrSourceShape     ErrorCode = "SOURCE_SHAPE"     // 422
	ErrCompileAssembly ErrorCode = "COMPILE_ASSEMBLY" // 500
	ErrPersistence     ErrorCode = "PERSISTENCE"      // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// CogError represents a structured error with code, status, and details.
type CogError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CogError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CogError {
	return &CogError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an artifact cannot be found.
// Callers on the public path must pass the same identifier they were given so
// that unknown and private artifacts produce identical errors.
func NewNotFound(identifier string) *CogError {
	return &CogError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("artifact not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *CogError {
	return &CogError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewSourceTooLarge creates a 413 error when source text exceeds the size limit.
func NewSourceTooLarge(max, actual int) *CogError {
	return &CogError{
		Code:    ErrSourceTooLarge,
		Status:  413,
		Message: fmt.Sprintf("source exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewSourceShape creates a 422 error when no component definition can be located.
func NewSourceShape(msg string) *CogError {
	return &CogError{
		Code:    ErrSourceShape,
		Status:  422,
		Message: msg,
	}
}

// NewCompileAssembly creates a 500 error for failures while assembling a bundle.
func NewCompileAssembly(err error) *CogError {
	msg := "bundle assembly failed"
	if err != nil {
		msg = "bundle assembly failed: " + err.Error()
	}
	return &CogError{
		Code:    ErrCompileAssembly,
		Status:  500,
		Message: msg,
	}
}

// NewPersistence creates a 500 error for artifact store write failures.
func NewPersistence(err error) *CogError {
	msg := "persistence error"
	if err != nil {
		msg = err.Error()
	}
	return &CogError{
		Code:    ErrPersistence,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message is generic; the cause is kept in Details for logging.
func NewInternal(err error) *CogError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &CogError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is a CogError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CogError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// IsBuildFailure reports whether err is a compile-stage error that is
// recorded on the artifact rather than returned to the caller.
func IsBuildFailure(err error) bool {
	return Is(err, ErrSourceShape) || Is(err, ErrCompileAssembly)
}
