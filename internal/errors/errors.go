// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrContainerUnavailable = errors.New("chart container missing or zero-sized")
	ErrDisposed             = errors.New("canvas controller disposed")
	ErrMalformedMessage     = errors.New("malformed message")
	ErrUnknownTool          = errors.New("unknown drawing tool")
	ErrNoAnchors            = errors.New("no anchor points")
	ErrShapeNotFound        = errors.New("shape not found")
	ErrNoSelection          = errors.New("no shape selected")
	ErrDrawingDisabled      = errors.New("drawing disabled")
	ErrNotConnected         = errors.New("transport not connected")
	ErrTransportClosed      = errors.New("transport closed")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrTimeout              = errors.New("operation timed out")
	ErrRateLimited          = errors.New("rate limited")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDatabaseError        = errors.New("database error")
	ErrInputValidation      = errors.New("input validation failed")
	ErrCircuitOpen          = errors.New("circuit breaker is open")
)

// MessageError represents an inbound message that could not be decoded or
// failed validation. It always matches ErrMalformedMessage.
type MessageError struct {
	Type   string
	Reason string
	Err    error
}

func (e *MessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message [%s]: %s: %v", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed message [%s]: %s", e.Type, e.Reason)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

// Is makes every MessageError match ErrMalformedMessage.
func (e *MessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}

// NewMessageError creates a new MessageError.
func NewMessageError(msgType, reason string, err error) *MessageError {
	return &MessageError{
		Type:   msgType,
		Reason: reason,
		Err:    err,
	}
}

// TransportError represents a failure talking to the signaling transport.
type TransportError struct {
	Op   string
	Peer string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("transport error [%s] peer %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op, peer string, err error) *TransportError {
	return &TransportError{
		Op:   op,
		Peer: peer,
		Err:  err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is makes every ValidationError match ErrInputValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
