package errors

import (
	"errors"
	"fmt"
	"time"
)

// ConnectError indicates a transport-level connection failure for a device.
// Recoverable: the operator can retry the connect action.
type ConnectError struct {
	Device string
	Err    error
}

func NewConnectError(device string, err error) *ConnectError {
	return &ConnectError{Device: device, Err: err}
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Device, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError checks if the error is a ConnectError.
func IsConnectError(err error) bool {
	var e *ConnectError
	return errors.As(err, &e)
}

// ParseReason classifies why an instrument response could not be parsed.
type ParseReason string

const (
	ParseReasonMalformed ParseReason = "MALFORMED"
)

// ParseError indicates an instrument response did not match the expected
// record shape. Callers surface it as a zero-valued FAIL reading; it never
// aborts a session.
type ParseError struct {
	Reason ParseReason
	Raw    string
}

func NewMalformedResponseError(raw string) *ParseError {
	return &ParseError{Reason: ParseReasonMalformed, Raw: raw}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed instrument response: %q", e.Raw)
}

// IsParseError checks if the error is a ParseError.
func IsParseError(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// StreamError indicates the event stream died. Terminal for the stream
// instance that raised it: the client never retries internally, the operator
// has to trigger the reconnect action.
type StreamError struct {
	Message string
}

func NewStreamError(message string) *StreamError {
	return &StreamError{Message: message}
}

// NewConnectionLostError is the terminal error every dead stream publishes to
// its subscribers.
func NewConnectionLostError() *StreamError {
	return &StreamError{Message: "connection lost — use the reconnect action"}
}

func (e *StreamError) Error() string {
	return e.Message
}

// IsStreamError checks if the error is a StreamError.
func IsStreamError(err error) bool {
	var e *StreamError
	return errors.As(err, &e)
}

// SessionConflictError indicates a start was requested while a session is
// already RUNNING. The running session is left untouched.
type SessionConflictError struct{}

func NewSessionConflictError() *SessionConflictError {
	return &SessionConflictError{}
}

func (e *SessionConflictError) Error() string {
	return "inspection session already active"
}

// IsSessionConflictError checks if the error is a SessionConflictError.
func IsSessionConflictError(err error) bool {
	var e *SessionConflictError
	return errors.As(err, &e)
}

// TimeoutError indicates a command/response round trip exceeded its budget.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func NewTimeoutError(op string, budget time.Duration) *TimeoutError {
	return &TimeoutError{Op: op, Budget: budget}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

// IsTimeoutError checks if the error is a TimeoutError.
func IsTimeoutError(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// ResourceNotFoundError indicates a resource was not found.
type ResourceNotFoundError struct {
	Kind string
	Name string
}

func NewResourceNotFoundError(kind, name string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Kind: kind, Name: name}
}

func NewDeviceNotFoundError(deviceType string) *ResourceNotFoundError {
	return NewResourceNotFoundError("device", deviceType)
}

func NewModelNotFoundError(modelID string) *ResourceNotFoundError {
	return NewResourceNotFoundError("inspection model", modelID)
}

func NewPhaseNotFoundError(phase string) *ResourceNotFoundError {
	return NewResourceNotFoundError("phase", phase)
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// InvalidStateError indicates an invalid state for the requested operation.
type InvalidStateError struct {
	Reason string
}

func NewInvalidStateError(reason string) *InvalidStateError {
	return &InvalidStateError{Reason: reason}
}

func NewDeviceNotConnectedError(deviceType string) *InvalidStateError {
	return &InvalidStateError{Reason: fmt.Sprintf("%s is not connected", deviceType)}
}

func (e *InvalidStateError) Error() string {
	if e.Reason == "" {
		return "invalid state for this operation"
	}
	return e.Reason
}

func IsInvalidStateError(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

// GatewayError wraps a failure response from the device driver backend.
type GatewayError struct {
	StatusCode int
	Message    string
}

func NewGatewayError(statusCode int, message string) *GatewayError {
	return &GatewayError{StatusCode: statusCode, Message: message}
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("driver: %s", e.Message)
	}
	return fmt.Sprintf("driver returned %d: %s", e.StatusCode, e.Message)
}

// IsGatewayError checks if the error is a GatewayError.
func IsGatewayError(err error) bool {
	var e *GatewayError
	return errors.As(err, &e)
}
