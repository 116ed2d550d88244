package source

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies an upstream failure into the shared taxonomy every
// adapter maps its own error vocabulary onto.
type ErrorKind string

const (
	KindValidation   ErrorKind = "VALIDATION_ERROR"
	KindInvalidToken ErrorKind = "INVALID_TOKEN"
	KindRateLimit    ErrorKind = "RATE_LIMIT"
	KindTimeout      ErrorKind = "TIMEOUT"
	KindUnavailable  ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindNetwork      ErrorKind = "NETWORK_ERROR"
	KindParsing      ErrorKind = "PARSING_ERROR"
	KindUnknown      ErrorKind = "UNKNOWN"
)

// userMessages are the caller-facing descriptions per kind. Upstream error
// strings (typos included) never leak past this table.
var userMessages = map[ErrorKind]string{
	KindValidation:   "Search query must not be empty",
	KindInvalidToken: "Unauthorized access - invalid API token",
	KindRateLimit:    "Rate limit exceeded - try again later",
	KindTimeout:      "Request timed out",
	KindUnavailable:  "Service temporarily unavailable",
	KindNetwork:      "Network error while contacting service",
	KindParsing:      "Unexpected response format from service",
	KindUnknown:      "Unknown error",
}

// Message returns the user-facing message for the kind.
func (k ErrorKind) Message() string {
	if m, ok := userMessages[k]; ok {
		return m
	}
	return userMessages[KindUnknown]
}

// Transient reports whether calls failing with this kind are worth
// retrying and should count toward circuit breaker failure thresholds.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindUnavailable, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is a classified adapter failure.
type Error struct {
	SourceID string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.SourceID + ": " + string(e.Kind) + ": " + e.Err.Error()
	}
	return e.SourceID + ": " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a classified source failure.
func NewError(sourceID string, kind ErrorKind, err error) *Error {
	return &Error{SourceID: sourceID, Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// fall through to network/timeout detection, then UNKNOWN.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsTransient reports whether err classifies to a transient kind.
func IsTransient(err error) bool {
	return KindOf(err).Transient()
}

// ClassifyStatus maps an HTTP status code onto the taxonomy.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindInvalidToken
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// ClassifyMessage maps an upstream error string onto the taxonomy. Known
// upstream typos ("Unothorized") are treated the same as their intended
// spelling.
func ClassifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "unauthorized"),
		strings.Contains(m, "unothorized"),
		strings.Contains(m, "invalid token"),
		strings.Contains(m, "invalid api key"),
		strings.Contains(m, "wrong token"):
		return KindInvalidToken
	case strings.Contains(m, "rate limit"),
		strings.Contains(m, "too many requests"):
		return KindRateLimit
	case strings.Contains(m, "timeout"),
		strings.Contains(m, "timed out"):
		return KindTimeout
	case strings.Contains(m, "unavailable"),
		strings.Contains(m, "maintenance"):
		return KindUnavailable
	default:
		return KindUnknown
	}
}
