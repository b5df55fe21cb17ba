package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies an error for conversion into a wire envelope.
type ErrorKind string

// Error kinds.
const (
	KindParse                ErrorKind = "parse"
	KindActionNotImplemented ErrorKind = "action_not_implemented"
	KindAccessDenied         ErrorKind = "access_denied"
	KindNotFound             ErrorKind = "not_found"
	KindPresetTask           ErrorKind = "preset_task"
	KindPresetTimeout        ErrorKind = "preset_timeout"
	KindDomain               ErrorKind = "domain"
	KindUnknown              ErrorKind = "unknown"
)

// Standard error codes carried in the code attribute of an error envelope.
const (
	ErrParse          = "PARSE_ERROR"
	ErrNotImplemented = "NOT_IMPLEMENTED"
	ErrForbidden      = "FORBIDDEN"
	ErrNotFound       = "NOT_FOUND"
	ErrPresetFailed   = "PRESET_FAILED"
	ErrPresetTimeout  = "PRESET_TIMEOUT"
	ErrUnknown        = "UNKNOWN_ERROR"
)

// Error is a classified failure with a user-visible message. The wrapped cause,
// if any, is for logs only and never reaches the panel.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewParseError returns a parse error for a malformed envelope.
func NewParseError(msg string, err error) *Error {
	return &Error{Kind: KindParse, Code: ErrParse, Message: msg, Err: err}
}

// NewActionNotImplementedError names the action an endpoint has no handler for.
func NewActionNotImplementedError(action, endpoint string) *Error {
	return &Error{
		Kind:    KindActionNotImplemented,
		Code:    ErrNotImplemented,
		Message: fmt.Sprintf("Action %q is not implemented by endpoint %q", action, endpoint),
	}
}

// NewAccessDeniedError returns an access-denied error.
func NewAccessDeniedError() *Error {
	return &Error{Kind: KindAccessDenied, Code: ErrForbidden, Message: "Access denied"}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: ErrNotFound, Message: msg}
}

// NewDomainError returns an error raised deliberately by endpoint logic. Its
// message is shown to the panel user as is.
func NewDomainError(code, msg string) *Error {
	return &Error{Kind: KindDomain, Code: code, Message: msg}
}

// NewUnknownError wraps an unclassified failure behind an opaque message.
func NewUnknownError(err error) *Error {
	return &Error{Kind: KindUnknown, Code: ErrUnknown, Message: "Internal server error", Err: err}
}

// PresetTaskError reports that the option source of one field failed.
type PresetTaskError struct {
	Field string
	Err   error
}

func (e *PresetTaskError) Error() string {
	return fmt.Sprintf("option preset for field %q failed: %v", e.Field, e.Err)
}

func (e *PresetTaskError) Unwrap() error { return e.Err }

// PresetTimeoutError reports that option sources did not finish within the bound.
type PresetTimeoutError struct {
	Timeout time.Duration
	Pending []string
}

func (e *PresetTimeoutError) Error() string {
	return fmt.Sprintf("option presets timed out after %s (pending: %s)", e.Timeout, strings.Join(e.Pending, ", "))
}

// KindOf returns the kind of err, or an empty kind for a nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

// AsError converts any error into an *Error. Preset failures keep their own
// kinds, classified errors pass through and everything else becomes unknown.
func AsError(err error) *Error {
	var taskErr *PresetTaskError
	if errors.As(err, &taskErr) {
		msg := fmt.Sprintf("Failed to load options for field %q", taskErr.Field)
		var inner *Error
		if errors.As(taskErr.Err, &inner) && inner.Kind == KindDomain {
			msg = inner.Message
		}
		return &Error{Kind: KindPresetTask, Code: ErrPresetFailed, Message: msg, Err: err}
	}
	var timeoutErr *PresetTimeoutError
	if errors.As(err, &timeoutErr) {
		return &Error{Kind: KindPresetTimeout, Code: ErrPresetTimeout, Message: "Loading options took too long", Err: err}
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnknownError(err)
}
