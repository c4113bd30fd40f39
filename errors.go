package toolmesh

import "github.com/toolmesh/toolmesh-go/internal/errors"

// Re-export error types from internal package

// RemoteError reports a call the server answered with an error object. It is
// scoped to the one call that failed; the session stays usable.
type RemoteError = errors.RemoteError

// TransportError reports a channel failure. It is fatal to the session.
type TransportError = errors.TransportError

// ProtocolViolationError reports an inbound message that could not be
// interpreted. It is fatal to the session, exactly like a channel failure.
type ProtocolViolationError = errors.ProtocolViolationError

// DialError reports a failure to establish the channel.
type DialError = errors.DialError

// ToolmeshError is the interface every error produced by this module
// implements.
type ToolmeshError = errors.ToolmeshError

// Re-export sentinel errors from internal package.
var (
	// ErrSessionClosed indicates the session has ended; the client cannot
	// be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrNotReady indicates an operation was attempted before the handshake
	// completed.
	ErrNotReady = errors.ErrNotReady

	// ErrAlreadyConnected indicates Connect was called on a live session.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrDuplicateCallID indicates a batch carried the same call id twice.
	ErrDuplicateCallID = errors.ErrDuplicateCallID

	// ErrIDExhausted indicates the session used up its request id space.
	ErrIDExhausted = errors.ErrIDExhausted
)
