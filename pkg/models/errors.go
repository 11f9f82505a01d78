package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure classes shared by every component.
// Typed errors below match them through errors.Is.
var (
	ErrNotConfigured = errors.New("not configured")
	ErrUpstream      = errors.New("upstream call failed")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
)

// ConfigurationError reports missing credentials or settings for a component.
// It is raised when the component is constructed, never at call time.
type ConfigurationError struct {
	Component string
	Detail    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Component, e.Detail)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrNotConfigured }

// UpstreamCallError reports a failed call to an external service: a transport
// error, a timeout or a non-success response.
type UpstreamCallError struct {
	Service    string
	StatusCode int
	Detail     string
	Timeout    bool
	Err        error
}

func (e *UpstreamCallError) Error() string {
	msg := e.Service + " call failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Timeout {
		msg += " (timeout)"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamCallError) Unwrap() error { return e.Err }

func (e *UpstreamCallError) Is(target error) bool { return target == ErrUpstream }

// NotFoundError reports that a lookup target does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Detail
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for constructing a ValidationError.
func Invalid(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// NotConfigured is shorthand for constructing a ConfigurationError.
func NotConfigured(component, detail string) error {
	return &ConfigurationError{Component: component, Detail: detail}
}
