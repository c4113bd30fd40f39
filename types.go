package toolmesh

import (
	"github.com/toolmesh/toolmesh-go/internal/client"
	"github.com/toolmesh/toolmesh-go/internal/config"
)

// Options holds the full session configuration. Prefer the functional
// options (WithToken, WithLogger, ...) over building this struct directly.
type Options = config.Options

// Info identifies one party of the handshake: the client identity declared
// in the initialize request, or the server identity reported back.
type Info = config.Info

// State is the lifecycle phase of a session.
type State = client.State

// Lifecycle states, in order. Sessions move strictly forward and are never
// reused.
const (
	StateDisconnected = client.StateDisconnected
	StateConnected    = client.StateConnected
	StateInitializing = client.StateInitializing
	StateReady        = client.StateReady
	StateClosed       = client.StateClosed
)

// Tool describes a remotely invocable tool as reported by ListTools.
type Tool = client.Tool

// BatchCall is one entry in a batched tool invocation.
type BatchCall = client.BatchCall

// BatchOutcome is the per-call result of one batch entry.
type BatchOutcome = client.BatchOutcome

// BatchResult aggregates the outcomes of one batched invocation.
type BatchResult = client.BatchResult

// ContextDocument is the session's server-held context object.
type ContextDocument = client.ContextDocument

// Notification is a server-initiated event outside any request/response pair.
type Notification = client.Notification
