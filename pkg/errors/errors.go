// Package errors provides structured error handling for bucketsource.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInvalidRequest represents a malformed ingestion request
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeUnsupportedFormat represents an object key whose extension is
	// outside the supported format set
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	// ErrorTypeUnsupportedPattern represents a pattern key used without
	// multi-segment permission
	ErrorTypeUnsupportedPattern ErrorType = "unsupported_pattern"
	// ErrorTypeEmptySelection represents a pattern that matched no objects
	ErrorTypeEmptySelection ErrorType = "empty_selection"
	// ErrorTypeMixedFormat represents a pattern whose matches span more than
	// one format
	ErrorTypeMixedFormat ErrorType = "mixed_format"
	// ErrorTypeSchemaMismatch represents segment schemas diverging within a run
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeTransport represents storage retrieval or network failures
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeParse represents format-specific parse failures
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeNotFound represents a missing bucket or object
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypePermission represents access-denied failures from storage
	ErrorTypePermission ErrorType = "permission"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the error's type, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// IsSegmentScoped returns true if the error is scoped to a single segment of
// a multi-segment run and may be routed to a configured error handler.
// Transport and parse failures qualify; everything else aborts the run.
func IsSegmentScoped(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTransport, ErrorTypeParse, ErrorTypeNotFound, ErrorTypePermission:
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error must abort the run regardless of error
// handler configuration.
func IsFatal(err error) bool {
	return !IsSegmentScoped(err)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
