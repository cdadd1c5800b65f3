package models

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned before any upstream call when a required
// credential or setting is missing
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return "Missing " + e.Setting
}

// ValidationError reports unusable caller input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamError is a failed call to an external provider. Body holds the raw
// upstream response body so it can be passed through to callers.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.StatusCode, truncate(string(e.Body), 200))
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when an upstream lookup succeeded but the
// requested entity does not exist
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
