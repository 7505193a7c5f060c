package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"weylus/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Session codes
	ErrCodeNotConnected     ErrorCode = "NOT_CONNECTED"
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	ErrCodeProtocol         ErrorCode = "PROTOCOL_ERROR"
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

func NewNotConnectedError() *AppError {
	return NewAppError(ErrCodeNotConnected, "no active session", http.StatusConflict)
}

// FromSessionError maps a domain failure onto the control API error it is
// reported as. AppErrors pass through unchanged.
func FromSessionError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrExhaustedRetries):
		return WrapError(err, ErrCodeRetriesExhausted, "max reconnect attempts exceeded", http.StatusBadGateway)
	case stderrors.Is(err, domain.ErrProtocol):
		return WrapError(err, ErrCodeProtocol, "host sent a malformed message", http.StatusBadGateway)
	case stderrors.Is(err, domain.ErrTimeout):
		return WrapError(err, ErrCodeTimeout, "handshake timed out", http.StatusGatewayTimeout)
	case stderrors.Is(err, domain.ErrTransport):
		return WrapError(err, ErrCodeConnectionFailed, "connection to host failed", http.StatusBadGateway)
	case stderrors.Is(err, domain.ErrNotConnected):
		return WrapError(err, ErrCodeNotConnected, "no active session", http.StatusConflict)
	case stderrors.Is(err, domain.ErrSettingsStore):
		return WrapError(err, ErrCodeServiceUnavailable, "settings store unavailable", http.StatusServiceUnavailable)
	default:
		return WrapError(err, ErrCodeInternal, err.Error(), http.StatusInternalServerError)
	}
}

// FromState returns the error carried by an Error state, or nil for any
// other state.
func FromState(state domain.ConnectionState) *AppError {
	if state.Kind != domain.StateError {
		return nil
	}
	cause := state.Cause
	if cause == nil {
		cause = stderrors.New(state.Message)
	}
	appErr := FromSessionError(cause)
	if state.Message != "" {
		appErr.Message = state.Message
	}
	return appErr
}

// IsAppError reports whether err's chain contains an AppError.
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
