package models

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below matches exactly one of them with
// errors.Is, so callers can branch without knowing the concrete type.
var (
	ErrConfig    = errors.New("configuration error")
	ErrParse     = errors.New("parse error")
	ErrIO        = errors.New("store i/o error")
	ErrInference = errors.New("inference error")
	ErrSession   = errors.New("session error")
)

// ConfigError reports missing or invalid startup configuration
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ParseError reports a model reply that holds no usable structured payload
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports a payload that parsed but is missing or breaks a
// required field. It is handled exactly like a ParseError.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrParse }

// IOError reports a failed store read or append. Appends never leave partial rows.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// InferenceError reports a failed or timed out call to the model
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInference }

// SessionError reports a missing, invalid or expired session
type SessionError struct {
	Reason string
}

func (e *SessionError) Error() string {
	return "session: " + e.Reason
}

func (e *SessionError) Is(target error) bool { return target == ErrSession }
