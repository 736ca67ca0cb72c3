// Package errors provides structured error handling for tablecore.
//
// Two error kinds matter to callers of the store and the codec:
//
//   - ErrorTypeData: the input (a cell, a literal) is malformed or does not
//     match the expected type. These carry the offending snippet, the expected
//     type and the original text so the problem can be located and fixed.
//   - ErrorTypeInternal: an invariant of the store itself was violated. These
//     point at a defect, never at the data.
//
// The remaining types are used by the configuration and command line layers.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/tablecore/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeData represents malformed or type-mismatched user data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeValidation represents validation errors of descriptors and schemas
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Detail keys attached to data errors.
const (
	DetailSnippet      = "snippet"
	DetailExpectedType = "expected_type"
	DetailText         = "text"
	DetailRow          = "row"
	DetailColumn       = "column"
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
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
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

// Detail returns a detail previously attached with WithDetail.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
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
		Message: stringpool.Sprintf(format, args...),
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

// Data creates a user-data error for text that could not be read as the
// expected type.
func Data(message, snippet, expectedType, text string) *Error {
	e := &Error{
		Type:    ErrorTypeData,
		Message: message,
		Stack:   captureStack(2),
	}
	return e.WithDetail(DetailSnippet, snippet).
		WithDetail(DetailExpectedType, expectedType).
		WithDetail(DetailText, text)
}

// Internal creates an internal invariant violation error
func Internal(format string, args ...interface{}) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type.
// Only the outermost structured error in the chain is consulted.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsUserData reports whether err is attributable to the data being loaded or
// entered. Internal errors anywhere in the chain take precedence.
func IsUserData(err error) bool {
	return !IsInternal(err) && hasType(err, ErrorTypeData)
}

// IsInternal reports whether err, or any structured error it wraps, is an
// internal invariant violation.
func IsInternal(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

func hasType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
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
