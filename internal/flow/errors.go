package flow

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ConnectionErrorType categorizes the type of connection error.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown indicates an unclassified connection error.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS indicates a TLS/certificate verification error.
	ConnectionErrorTLS
	// ConnectionErrorNetwork indicates a network connectivity error (e.g., refused, unreachable).
	ConnectionErrorNetwork
	// ConnectionErrorTimeout indicates a connection timeout.
	ConnectionErrorTimeout
	// ConnectionErrorDNS indicates a DNS resolution failure.
	ConnectionErrorDNS
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	default:
		return "Connection error"
	}
}

// ConnectionError indicates the backend could not be reached.
type ConnectionError struct {
	// Endpoint is the URL that could not be reached.
	Endpoint string
	// Type categorizes the connection error.
	Type ConnectionErrorType
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: could not connect to %s. Make sure the backend is running: %v", e.Type, e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// ClassifyConnectionError analyzes an error and returns a ConnectionError with the appropriate type.
// If the error is nil, returns nil.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}

	connErr := &ConnectionError{
		Endpoint: endpoint,
		Type:     ConnectionErrorUnknown,
		Reason:   err,
	}

	var dnsErr *net.DNSError
	switch {
	case isTLSError(err):
		connErr.Type = ConnectionErrorTLS
	case errors.As(err, &dnsErr):
		connErr.Type = ConnectionErrorDNS
	case isTimeoutError(err):
		connErr.Type = ConnectionErrorTimeout
	case isNetworkError(err.Error()):
		connErr.Type = ConnectionErrorNetwork
	}

	return connErr
}

// isTLSError checks if the error is related to TLS/certificate issues.
func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// isTimeoutError checks if the error is a timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if the error string indicates a network connectivity issue.
func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// UnexpectedStatusError is returned when the backend answers a step with a
// status the flow cannot continue from.
type UnexpectedStatusError struct {
	// Step names the flow step, e.g. "authorize".
	Step string
	// URL is the requested URL.
	URL string
	// StatusCode is the status the backend answered with.
	StatusCode int
	// Detail explains what was expected.
	Detail string
	// BodyPreview holds the start of the response body.
	BodyPreview string
}

// Error implements the error interface.
func (e *UnexpectedStatusError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status %d from %s", e.Step, e.StatusCode, e.URL)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// CallbackTimeoutError is returned when no callback arrived in time.
type CallbackTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *CallbackTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the OAuth callback (or the user cancelled)", e.Timeout)
}

// CallbackFailedError is returned when the backend did not complete the
// flow after the callback was replayed.
type CallbackFailedError struct {
	// StatusCode is the status of the replayed callback.
	StatusCode int
	// Reason summarizes why the response was classified as a failure.
	Reason string
	// BackendError and BackendCode come from the backend's JSON error body, when present.
	BackendError string
	BackendCode  string
	// BodyPreview holds the start of the response body.
	BodyPreview string
}

// Error implements the error interface.
func (e *CallbackFailedError) Error() string {
	msg := fmt.Sprintf("callback failed with status %d: %s", e.StatusCode, e.Reason)
	if e.BackendError != "" {
		msg += fmt.Sprintf(" (backend error: %s", e.BackendError)
		if e.BackendCode != "" {
			msg += ", code " + e.BackendCode
		}
		msg += ")"
	}
	return msg
}
