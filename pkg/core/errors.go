package core

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a failure surfaced by the chat or speech layers.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Chat taxonomy.
	ErrRateLimited      ErrorType = "rate_limited_error"
	ErrQuotaExhausted   ErrorType = "quota_exhausted_error"
	ErrTransportFailure ErrorType = "transport_error"
	ErrCancelled        ErrorType = "cancelled"

	// Speech taxonomy.
	ErrSynthesisFailed  ErrorType = "synthesis_failed_error"
	ErrVoiceUnavailable ErrorType = "voice_unavailable_error"

	// Shared.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAPI            ErrorType = "api_error"
)

// NewRateLimitedError creates a rate limit error (HTTP 429).
func NewRateLimitedError(message string, retryAfter int) *Error {
	e := &Error{
		Type:       ErrRateLimited,
		Message:    message,
		StatusCode: 429,
	}
	if retryAfter > 0 {
		e.RetryAfter = &retryAfter
	}
	return e
}

// NewQuotaExhaustedError creates a quota exhausted error (HTTP 402).
func NewQuotaExhaustedError(message string) *Error {
	return &Error{
		Type:       ErrQuotaExhausted,
		Message:    message,
		StatusCode: 402,
	}
}

// NewTransportError wraps a network or body-read failure.
func NewTransportError(op string, err error) *Error {
	return &Error{
		Type:    ErrTransportFailure,
		Message: fmt.Sprintf("%s: %v", op, err),
		Cause:   err,
	}
}

// NewCancelledError marks a user-initiated abort. Callers swallow it
// rather than reporting a failure.
func NewCancelledError() *Error {
	return &Error{
		Type:    ErrCancelled,
		Message: "request cancelled",
	}
}

// NewSynthesisError wraps a remote synthesis failure.
func NewSynthesisError(message string, err error) *Error {
	return &Error{
		Type:    ErrSynthesisFailed,
		Message: message,
		Cause:   err,
	}
}

// NewVoiceUnavailableError indicates both synthesis paths are gone for
// this session; the caller continues text-only.
func NewVoiceUnavailableError(message string) *Error {
	return &Error{
		Type:    ErrVoiceUnavailable,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCancelled reports whether err is a user-initiated abort, including
// raw context cancellation from an aborted body read.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Type == ErrCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// TypeOf returns the taxonomy type of err, or ErrAPI for foreign errors.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrAPI
}
