// Package errors provides custom error types for the Gemini chat transport and
// the speech capabilities.
package errors

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Sentinel errors for common cases
var (
	ErrNoAPIKey              = errors.New("no API key configured")
	ErrAuthFailed            = errors.New("authentication failed")
	ErrInvalidResponse       = errors.New("invalid response format")
	ErrNoContent             = errors.New("no content in response")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrClientClosed          = errors.New("client is closed")
)

// AuthError represents a rejected API key
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: API key may be invalid"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// APIError represents a failed request against the chat service
type APIError struct {
	StatusCode int
	Status     string // provider status, e.g. "INVALID_ARGUMENT"
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NetworkError wraps a transport failure (connect, read, write).
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s at %s: %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(operation string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Err: err}
}

// NewNetworkErrorWithEndpoint creates a NetworkError that records the endpoint
func NewNetworkErrorWithEndpoint(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// UsageLimitError represents a quota or rate limit rejection
type UsageLimitError struct {
	Message string
}

func (e *UsageLimitError) Error() string {
	if e.Message == "" {
		return "usage limit exceeded"
	}
	return fmt.Sprintf("usage limit exceeded: %s", e.Message)
}

// NewUsageLimitError creates a new UsageLimitError
func NewUsageLimitError(message string) *UsageLimitError {
	return &UsageLimitError{Message: message}
}

// BlockedError represents a prompt or response blocked by the service
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return "content blocked"
	}
	return fmt.Sprintf("content blocked: %s", e.Reason)
}

// NewBlockedError creates a new BlockedError
func NewBlockedError(reason string) *BlockedError {
	return &BlockedError{Reason: reason}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Data    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(message, data string) *ParseError {
	return &ParseError{Message: message, Data: data}
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// CapabilityError reports that a speech capability is not provided by the
// running environment.
type CapabilityError struct {
	Capability string
	Reason     string
}

func (e *CapabilityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is not supported in this environment", e.Capability)
	}
	return fmt.Sprintf("%s is not supported in this environment: %s", e.Capability, e.Reason)
}

// Is matches ErrCapabilityUnavailable
func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityUnavailable
}

// NewCapabilityError creates a new CapabilityError
func NewCapabilityError(capability, reason string) *CapabilityError {
	return &CapabilityError{Capability: capability, Reason: reason}
}

// FromStatus maps an HTTP status of the chat service to a typed error.
func FromStatus(statusCode int, endpoint, message string) error {
	switch statusCode {
	case 401, 403:
		return NewAuthError(message)
	case 408, 504:
		return NewTimeoutError(message)
	case 429:
		return NewUsageLimitError(message)
	default:
		return NewAPIError(statusCode, endpoint, message)
	}
}

// GetHTTPStatus returns the HTTP status carried by err, or 0.
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetEndpoint returns the endpoint recorded in err, or "".
func GetEndpoint(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Endpoint
	}
	return ""
}

// IsAuthError reports whether err is an authentication failure
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrNoAPIKey)
}

// IsRateLimitError reports whether err is a quota rejection
func IsRateLimitError(err error) bool {
	var limitErr *UsageLimitError
	return errors.As(err, &limitErr)
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is a timeout, either typed or from the network stack
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsBlockedError reports whether err is a content block
func IsBlockedError(err error) bool {
	var blockedErr *BlockedError
	return errors.As(err, &blockedErr)
}

// IsCapabilityUnavailable reports whether err signals a missing speech capability
func IsCapabilityUnavailable(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable)
}
