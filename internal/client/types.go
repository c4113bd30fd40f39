package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// State is the lifecycle phase of a session. Sessions move strictly forward:
// Disconnected, Connected, Initializing, Ready, Closed. A session is never
// reused; after Closed a new client must be created.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateInitializing
	StateReady
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Tool describes a remotely invocable tool as reported by tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Schema parses the tool's raw input schema into structured form. Tools
// without a schema return nil.
func (t Tool) Schema() (*jsonschema.Schema, error) {
	if len(t.InputSchema) == 0 {
		return nil, nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return nil, fmt.Errorf("parse input schema for %s: %w", t.Name, err)
	}

	return &schema, nil
}

// BatchCall is one entry in a tools/batch request. ID correlates the entry
// with its outcome in the result; when empty, an id is assigned automatically.
type BatchCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// BatchOutcome is the per-call result of a batch entry. Exactly one of Result
// and Error is meaningful; Raw preserves the outcome as the server sent it.
type BatchOutcome struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// OK reports whether the call succeeded.
func (o BatchOutcome) OK() bool {
	return o.Error == ""
}

// BatchResult is the aggregate result of a tools/batch call. Outcomes is
// keyed by the call ids of the request.
type BatchResult struct {
	Outcomes     map[string]BatchOutcome
	SuccessCount int
	ErrorCount   int
	Duration     time.Duration
}

// ContextDocument is the session's server-held context object.
type ContextDocument map[string]any

// Notification is a server-initiated event outside any request/response pair.
type Notification struct {
	Method string
	Params json.RawMessage
}
