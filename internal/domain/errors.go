package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	CodeModelNotFound             ErrorCode = "model_not_found"
	CodePromptRequired            ErrorCode = "prompt_required"
	CodePromptTooLong             ErrorCode = "prompt_too_long"
	CodeMissingReferenceInput     ErrorCode = "missing_reference_input"
	CodeUnsupportedReferenceInput ErrorCode = "unsupported_reference_input"
	CodeMissingRequiredSetting    ErrorCode = "missing_required_setting"

	CodeMissingCredentials ErrorCode = "missing_credentials"
	CodeSubmitError        ErrorCode = "submit_error"
	CodeStatusError        ErrorCode = "status_error"
	CodeResultError        ErrorCode = "result_error"
	CodeResultNotReady     ErrorCode = "result_not_ready"
	CodeCancelError        ErrorCode = "cancel_error"
	CodeUploadError        ErrorCode = "upload_error"

	CodeGenerationTimeout   ErrorCode = "generation_timeout"
	CodeGenerationFailed    ErrorCode = "generation_failed"
	CodeGenerationCancelled ErrorCode = "generation_cancelled"

	CodeStorageError ErrorCode = "storage_error"
	CodeNotFound     ErrorCode = "not_found"
	CodeInternal     ErrorCode = "internal"
)

// Category groups codes by how callers should react to them.
type Category string

const (
	CategoryValidation          Category = "validation"
	CategoryProviderTransport   Category = "provider_transport"
	CategoryProviderLogic       Category = "provider_logic"
	CategoryTimeout             Category = "timeout"
	CategoryCancelled           Category = "cancelled"
	CategoryResultInconsistency Category = "result_inconsistency"
	CategoryInternal            Category = "internal"
)

// Category returns the reaction group of the code.
func (c ErrorCode) Category() Category {
	switch c {
	case CodeModelNotFound, CodePromptRequired, CodePromptTooLong,
		CodeMissingReferenceInput, CodeUnsupportedReferenceInput, CodeMissingRequiredSetting:
		return CategoryValidation
	case CodeSubmitError, CodeStatusError, CodeCancelError, CodeUploadError, CodeMissingCredentials:
		return CategoryProviderTransport
	case CodeGenerationFailed:
		return CategoryProviderLogic
	case CodeGenerationTimeout:
		return CategoryTimeout
	case CodeGenerationCancelled:
		return CategoryCancelled
	case CodeResultError, CodeResultNotReady:
		return CategoryResultInconsistency
	default:
		return CategoryInternal
	}
}

// Retryable reports whether a caller may retry the failed operation.
func (c ErrorCode) Retryable() bool {
	switch c.Category() {
	case CategoryProviderTransport:
		return c != CodeMissingCredentials
	case CategoryTimeout:
		return true
	default:
		return false
	}
}

// Error is the error type returned by every component of the engine.
type Error struct {
	Code    ErrorCode
	Message string
	// Field names the offending request field or setting key for
	// validation failures.
	Field string
	// HTTPStatus is the provider status code when one was received.
	HTTPStatus int
	// RequestID is the provider request id once a job was submitted.
	RequestID string
	// LastStatus is the last observed job status for timeouts.
	LastStatus JobStatus
	Context    map[string]any
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return t.Code == e.Code
}

// Category is a shortcut for e.Code.Category().
func (e *Error) Category() Category { return e.Code.Category() }

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError builds a validation failure pointing at field.
func ValidationError(code ErrorCode, field, message string) *Error {
	return &Error{Code: code, Field: field, Message: message}
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrModelNotFound          = &Error{Code: CodeModelNotFound, Message: "model not found"}
	ErrPromptRequired         = &Error{Code: CodePromptRequired, Message: "prompt is required"}
	ErrPromptTooLong          = &Error{Code: CodePromptTooLong, Message: "prompt is too long"}
	ErrMissingReferenceInput  = &Error{Code: CodeMissingReferenceInput, Message: "missing reference input"}
	ErrMissingRequiredSetting = &Error{Code: CodeMissingRequiredSetting, Message: "missing required setting"}
	ErrMissingCredentials     = &Error{Code: CodeMissingCredentials, Message: "provider credentials are not configured"}
	ErrResultNotReady         = &Error{Code: CodeResultNotReady, Message: "result is not ready"}
	ErrGenerationTimeout      = &Error{Code: CodeGenerationTimeout, Message: "generation timed out"}
	ErrGenerationFailed       = &Error{Code: CodeGenerationFailed, Message: "generation failed"}
	ErrGenerationCancelled    = &Error{Code: CodeGenerationCancelled, Message: "generation cancelled"}
)
