// Package util provides logging helpers and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Only ErrInventoryUnavailable aborts a collection cycle;
// the device-level kinds are recorded against a single device.
var (
	ErrInventoryUnavailable = errors.New("inventory unavailable")
	ErrDeviceUnreachable    = errors.New("device unreachable")
	ErrSessionFailure       = errors.New("session failure")
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrNotReady             = errors.New("snapshot not yet available")
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrValidationFailed     = errors.New("validation failed")
)

// DeviceErrorKind classifies a per-device failure.
type DeviceErrorKind int

const (
	// KindUnreachable: the session could not be established.
	KindUnreachable DeviceErrorKind = iota
	// KindSession: the session was established but an exchange failed.
	KindSession
)

func (k DeviceErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindSession:
		return "session"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DeviceError is a failure isolated to one device's collection pipeline.
type DeviceError struct {
	Address string
	Kind    DeviceErrorKind
	Op      string // request that failed, empty for unreachable
	Err     error
}

func (e *DeviceError) Error() string {
	var msg string
	switch e.Kind {
	case KindUnreachable:
		msg = fmt.Sprintf("device %s unreachable", e.Address)
	default:
		msg = fmt.Sprintf("device %s session failure", e.Address)
		if e.Op != "" {
			msg += " during " + e.Op
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is works against either.
func (e *DeviceError) Unwrap() []error {
	kind := ErrSessionFailure
	if e.Kind == KindUnreachable {
		kind = ErrDeviceUnreachable
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// NewUnreachableError creates a DeviceError for a failed session setup
func NewUnreachableError(address string, err error) *DeviceError {
	return &DeviceError{Address: address, Kind: KindUnreachable, Err: err}
}

// NewSessionError creates a DeviceError for a failed exchange
func NewSessionError(address, op string, err error) *DeviceError {
	return &DeviceError{Address: address, Kind: KindSession, Op: op, Err: err}
}

// InventoryError wraps a failure of the inventory/topology source.
type InventoryError struct {
	Source string // "devices", "connections", ...
	Err    error
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("inventory %s: %v", e.Source, e.Err)
}

func (e *InventoryError) Unwrap() []error {
	return []error{ErrInventoryUnavailable, e.Err}
}

// NewInventoryError creates an inventory error
func NewInventoryError(source string, err error) *InventoryError {
	return &InventoryError{Source: source, Err: err}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
