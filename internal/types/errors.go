package types

import (
	"errors"
	"fmt"
)

// ErrorCode discriminates the failure arm of every public operation.
type ErrorCode string

const (
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeHasChildren         ErrorCode = "HAS_CHILDREN"
	CodeInvariantViolation  ErrorCode = "INVARIANT_VIOLATION"
	CodeCircularDependency  ErrorCode = "CIRCULAR_DEPENDENCY"
	CodeDuplicateDependency ErrorCode = "DUPLICATE_DEPENDENCY"
	CodeSelfDependency      ErrorCode = "SELF_DEPENDENCY"
	CodeStorage             ErrorCode = "STORAGE"
)

// Error is the failure payload returned by repositories, the workflow
// engine, and bootstrap. Code is machine-readable; Message is for humans.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"error"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause to a coded error. The cause is reachable
// through errors.Unwrap for callers that need the underlying failure.
func WrapError(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...interface{}) *Error {
	return NewError(CodeValidation, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return NewError(CodeNotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return NewError(CodeConflict, format, args...)
}

func HasChildrenf(format string, args ...interface{}) *Error {
	return NewError(CodeHasChildren, format, args...)
}

func Invariantf(format string, args ...interface{}) *Error {
	return NewError(CodeInvariantViolation, format, args...)
}

func Storagef(err error, format string, args ...interface{}) *Error {
	return WrapError(CodeStorage, err, format, args...)
}

// CodeOf extracts the error code, or empty string for uncoded errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func IsValidation(err error) bool  { return HasCode(err, CodeValidation) }
func IsNotFound(err error) bool    { return HasCode(err, CodeNotFound) }
func IsConflict(err error) bool    { return HasCode(err, CodeConflict) }
func IsHasChildren(err error) bool { return HasCode(err, CodeHasChildren) }
func IsStorage(err error) bool     { return HasCode(err, CodeStorage) }
