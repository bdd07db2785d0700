package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Startup / derivation
	ErrConfiguration      ErrorType = "CONFIGURATION_ERROR"
	ErrDerivation         ErrorType = "DERIVATION_ERROR"
	ErrInvariantViolation ErrorType = "INVARIANT_VIOLATION"

	// Transport / authorization
	ErrTransport             ErrorType = "TRANSPORT_ERROR"
	ErrAuthorizationTimeout  ErrorType = "AUTHORIZATION_TIMEOUT"
	ErrAuthorizationRejected ErrorType = "AUTHORIZATION_REJECTED"

	// Order-submission outcomes
	ErrInsufficientFunds     ErrorType = "INSUFFICIENT_FUNDS"
	ErrBelowMinimumSize      ErrorType = "BELOW_MINIMUM_SIZE"
	ErrInvalidPrice          ErrorType = "INVALID_PRICE"
	ErrInvalidSignature      ErrorType = "INVALID_SIGNATURE"
	ErrThrottled             ErrorType = "THROTTLED"
	ErrUnclassifiedRejection ErrorType = "UNCLASSIFIED_REJECTION"

	// Gateway surface
	ErrAuthFailed     ErrorType = "AUTH_FAILED"
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
	ErrUpstream       ErrorType = "UPSTREAM_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is match on the error kind, so callers can compare
// against a sentinel built with the same type.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewTransport(msg string, cause error) *AppError {
	return New(ErrTransport, msg, cause)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsKind reports whether err carries the given error kind.
func IsKind(err error, t ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrDerivation, ErrBelowMinimumSize, ErrInvalidPrice:
		return http.StatusBadRequest
	case ErrAuthFailed, ErrInvalidSignature:
		return http.StatusUnauthorized
	case ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrNotFound:
		return http.StatusNotFound
	case ErrThrottled:
		return http.StatusTooManyRequests
	case ErrTransport, ErrUpstream, ErrUnclassifiedRejection:
		return http.StatusBadGateway
	case ErrAuthorizationTimeout:
		return http.StatusGatewayTimeout
	case ErrAuthorizationRejected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrConfiguration:
		return "Check the master mnemonic and required configuration."
	case ErrInsufficientFunds:
		return "Top up or approve the funding wallet."
	case ErrInvalidSignature:
		return "Re-authorize the derived signer on the funding wallet."
	case ErrThrottled:
		return "Back off and retry after the rate window rolls over."
	case ErrAuthorizationTimeout:
		return "Retry with a fresh authorization transaction."
	case ErrInvalidPrice:
		return "Price must be strictly between 0 and 1."
	case ErrBelowMinimumSize:
		return "Increase the order size above the exchange minimum."
	case ErrAuthFailed:
		return "Check API keys and signatures."
	default:
		return ""
	}
}
