package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.BackendURL) == "" {
		errs.Add("backend_url", "is required")
	} else if u, err := url.Parse(c.BackendURL); err != nil {
		errs.Add("backend_url", fmt.Sprintf("is not a valid URL: %v", err), c.BackendURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("backend_url", "must use http or https", c.BackendURL)
	} else if u.Host == "" {
		errs.Add("backend_url", "must include a host", c.BackendURL)
	}

	if strings.TrimSpace(c.Provider) == "" {
		errs.Add("provider", "is required")
	} else if strings.Contains(c.Provider, "/") {
		errs.Add("provider", "must be a single path segment", c.Provider)
	}

	if strings.TrimSpace(c.CallbackHost) == "" {
		errs.Add("callback_host", "is required")
	}

	if c.CallbackPort < 1 || c.CallbackPort > 65535 {
		errs.Add("callback_port", "must be between 1 and 65535", c.CallbackPort)
	}

	if !strings.HasPrefix(c.CallbackPath, "/") {
		errs.Add("callback_path", "must start with '/'", c.CallbackPath)
	}

	if c.Timeout <= 0 {
		errs.Add("timeout", "must be positive", c.Timeout)
	}
	if c.PollInterval <= 0 {
		errs.Add("poll_interval", "must be positive", c.PollInterval)
	} else if c.Timeout > 0 && c.PollInterval > c.Timeout {
		errs.Add("poll_interval", "must not exceed timeout", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		errs.Add("request_timeout", "must be positive", c.RequestTimeout)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
