package errors

import (
	"errors"
	"fmt"
)

// ToolmeshError is the base interface for all SDK errors.
type ToolmeshError interface {
	error
	IsToolmeshError() bool
}

// Compile-time verification that all error types implement ToolmeshError.
var (
	_ ToolmeshError = (*RemoteError)(nil)
	_ ToolmeshError = (*TransportError)(nil)
	_ ToolmeshError = (*ProtocolViolationError)(nil)
	_ ToolmeshError = (*DialError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionClosed indicates the session has been closed. Operations on a
	// closed session fail locally without touching the channel. Sessions are
	// single-use: create a new one with Connect().
	ErrSessionClosed = errors.New("session closed")

	// ErrNotReady indicates an operation was attempted before the handshake
	// completed. This is a programming error, not a transport condition.
	ErrNotReady = errors.New("session not ready: handshake has not completed")

	// ErrAlreadyConnected indicates Connect was called twice on one session.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrDuplicateCallID indicates a batch contained two calls with the same id.
	ErrDuplicateCallID = errors.New("duplicate call id in batch")

	// ErrIDExhausted indicates the request id counter would overflow.
	// Practically unreachable within a session's realistic lifetime.
	ErrIDExhausted = errors.New("request id space exhausted")
)

// RemoteError indicates the server rejected or failed a specific call.
// It is scoped to that call: the session and all other in-flight calls
// remain usable. The core never retries; retry policy belongs to the caller.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// IsToolmeshError implements ToolmeshError.
func (e *RemoteError) IsToolmeshError() bool { return true }

// TransportError indicates a channel-level failure. It is fatal to the
// session: every outstanding call fails with it and no new calls are accepted.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsToolmeshError implements ToolmeshError.
func (e *TransportError) IsToolmeshError() bool { return true }

// ProtocolViolationError indicates an inbound message could not be parsed
// into a known envelope kind. The correlation invariant can no longer be
// trusted, so it is fatal to the read loop, equivalent to a transport
// failure. RawData preserves the offending payload for diagnostics.
type ProtocolViolationError struct {
	RawData string
	Err     error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %v", e.Err)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// IsToolmeshError implements ToolmeshError.
func (e *ProtocolViolationError) IsToolmeshError() bool { return true }

// DialError indicates the channel could not be established.
type DialError struct {
	Endpoint string
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to dial %s: %v", e.Endpoint, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// IsToolmeshError implements ToolmeshError.
func (e *DialError) IsToolmeshError() bool { return true }
