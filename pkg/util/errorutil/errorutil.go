package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in API responses. Authentication failures keep
// distinct codes on purpose: the frontend's messaging and retry policy
// differ per kind, so they must never be collapsed into a generic 401.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeCustomerNotFound    = "CUSTOMER_NOT_FOUND"
	CodeInvalidMagicLink    = "INVALID_MAGIC_LINK"
	CodeExpiredMagicLink    = "EXPIRED_MAGIC_LINK"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidCredentials covers unknown bookings and email mismatches alike so
// responses leak nothing about which half of the pair was wrong.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "booking number and email do not match", http.StatusUnauthorized, nil)
}

func NewCustomerNotFound() error {
	return NewDomainError(CodeCustomerNotFound, "customer not found", http.StatusNotFound, nil)
}

func NewInvalidMagicLink() error {
	return NewDomainError(CodeInvalidMagicLink, "magic link is invalid or already used", http.StatusUnauthorized, nil)
}

func NewExpiredMagicLink() error {
	return NewDomainError(CodeExpiredMagicLink, "magic link has expired", http.StatusUnauthorized, nil)
}

func NewInvalidRefreshToken() error {
	return NewDomainError(CodeInvalidRefreshToken, "refresh token is invalid or no longer active", http.StatusUnauthorized, nil)
}

func NewTokenExpired() error {
	return NewDomainError(CodeTokenExpired, "access token has expired", http.StatusUnauthorized, nil)
}

func NewTokenRevoked() error {
	return NewDomainError(CodeTokenRevoked, "access token has been revoked", http.StatusUnauthorized, nil)
}

func NewInvalidToken() error {
	return NewDomainError(CodeInvalidToken, "token is invalid", http.StatusUnauthorized, nil)
}

// NewServiceUnavailable marks directory outages as retryable, unlike the
// terminal authentication failures above.
func NewServiceUnavailable(err error) error {
	return &DomainError{
		Code:       CodeServiceUnavailable,
		Message:    "booking directory is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many requests, slow down", http.StatusTooManyRequests, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
