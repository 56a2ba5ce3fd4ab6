package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies client errors
type ErrorType int

// Error types returned by the client
const (
	NetworkError ErrorType = iota
	TimeoutError
	HTTPError
	ValidationError
	InterceptorError
)

func (t ErrorType) String() string {
	switch t {
	case NetworkError:
		return "network"
	case TimeoutError:
		return "timeout"
	case HTTPError:
		return "http"
	case ValidationError:
		return "validation"
	case InterceptorError:
		return "interceptor"
	default:
		return "unknown"
	}
}

// ClientError is implemented by every error the client returns
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	err     error
}

// NewNetworkError creates an error for transport-level failures (connection refused, reset, DNS)
func NewNetworkError(message string, err error) ClientError {
	return &networkError{message: message, err: err}
}

func (e *networkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.err)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.err }

type timeoutError struct {
	message string
	timeout time.Duration
	err     error
}

// NewTimeoutError creates an error for an attempt that exceeded its transport timeout
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{message: message, timeout: timeout}
}

func newTimeoutErrorWithCause(message string, timeout time.Duration, err error) ClientError {
	return &timeoutError{message: message, timeout: timeout, err: err}
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }
func (e *timeoutError) Unwrap() error   { return e.err }

type httpError struct {
	message    string
	statusCode int
	body       []byte
}

// NewHTTPError creates an error for a response whose status was not acceptable
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.statusCode, e.message)
}

func (e *httpError) Type() ErrorType { return HTTPError }
func (e *httpError) StatusCode() int { return e.statusCode }
func (e *httpError) Body() []byte    { return e.body }

type validationError struct {
	message string
	field   string
}

// NewValidationError creates an error for a request that could not be built
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }

type interceptorError struct {
	message string
	stage   string
	err     error
}

// NewInterceptorError creates an error raised by a request or response interceptor
func NewInterceptorError(message, stage string, err error) ClientError {
	return &interceptorError{message: message, stage: stage, err: err}
}

func (e *interceptorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interceptor error in %s stage: %s: %v", e.stage, e.message, e.err)
	}
	return fmt.Sprintf("interceptor error in %s stage: %s", e.stage, e.message)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.err }

// IsErrorType reports whether err is a ClientError of type t
func IsErrorType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.Type() == t
	}
	return false
}

// IsHTTPStatusError reports whether err is an HTTP error carrying statusCode
func IsHTTPStatusError(err error, statusCode int) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode == statusCode
	}
	return false
}

// StatusCode extracts the status code of an HTTP error, or 0
func StatusCode(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode
	}
	return 0
}

// IsSuccessStatus reports whether statusCode is 2xx
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// retryable reports whether a failed attempt may be retried by the policy
func retryable(err error) bool {
	return IsErrorType(err, NetworkError) || IsErrorType(err, TimeoutError) || IsErrorType(err, HTTPError)
}
