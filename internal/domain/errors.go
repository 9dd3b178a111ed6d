package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrRuleNotFound  = errors.New("home rule not found")
	ErrAmbiguousRule = errors.New("more than one rule carries the home description")
)

// ResolutionError is returned when the public address lookup fails or its
// response cannot be parsed.
type ResolutionError struct {
	URL        string
	StatusCode int // Zero when no response was received
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	switch {
	case e.StatusCode != 0 && e.StatusCode != 200:
		return fmt.Sprintf("resolving public address via %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("resolving public address via %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("resolving public address via %s: invalid response %q", e.URL, e.Body)
	}
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// AdapterError wraps a failure of a rule store operation.
type AdapterError struct {
	Op      string // "describe", "revoke" or "authorize"
	GroupID string
	Err     error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s security group %s: %v", e.Op, e.GroupID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the status API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
