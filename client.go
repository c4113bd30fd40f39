package toolmesh

import (
	"context"
	"encoding/json"
)

// Client is one session against a tool-execution service.
//
// A client speaks the service's JSON message protocol over a single
// persistent channel: many concurrent calls share the channel, and
// responses are routed back to their callers by request id. Server
// notifications arrive on a separate channel, see Notifications().
//
// Lifecycle: clients are single-use. Connect() opens the channel and runs
// the handshake; after Close(), or after a channel failure, the client
// cannot be reused - create a new one with NewClient().
//
// Example usage:
//
//	client := toolmesh.NewClient("wss://mesh.example.com/ws",
//	    toolmesh.WithToken(os.Getenv("TOOLMESH_TOKEN")),
//	    toolmesh.WithLogger(slog.Default()),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.CallTool(ctx, "github.search", map[string]any{
//	    "query": "language:go stars:>1000",
//	})
//
// All methods are safe for concurrent use.
type Client interface {
	// Connect opens the channel and completes the handshake. On success
	// the session is Ready. The context bounds connection establishment
	// only; the session stays up until Close() or a channel failure.
	Connect(ctx context.Context) error

	// Ping checks channel liveness with a no-op round trip.
	Ping(ctx context.Context) error

	// ListTools returns the tools the server currently exposes. Never nil;
	// a server with no tools yields an empty slice.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes one tool and returns its raw result. A failure the
	// server reports for this call surfaces as *RemoteError and leaves the
	// session usable.
	CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error)

	// CallToolsBatch submits several tool calls as one request and returns
	// their per-id outcomes. Entries with an empty ID get one assigned;
	// duplicate ids fail locally with ErrDuplicateCallID.
	CallToolsBatch(ctx context.Context, calls []BatchCall, parallel bool) (*BatchResult, error)

	// GetContext fetches the session's server-held context document.
	GetContext(ctx context.Context) (ContextDocument, error)

	// UpdateContext writes the context document. With merge set, the given
	// keys are merged into the existing document; otherwise it is replaced.
	UpdateContext(ctx context.Context, doc ContextDocument, merge bool) error

	// ServerInfo returns the server identity reported during the handshake.
	ServerInfo() Info

	// ProtocolVersion returns the negotiated protocol version.
	ProtocolVersion() string

	// Capabilities returns the raw capability object from the handshake.
	Capabilities() json.RawMessage

	// Supports reports whether the server advertised the named capability.
	Supports(name string) bool

	// Notifications returns the channel of server notifications. Bounded;
	// closed when the session ends.
	Notifications() <-chan Notification

	// State returns the current lifecycle state.
	State() State

	// ID returns the local session identifier.
	ID() string

	// Err returns the error that terminated the session, if any. Nil while
	// the session is alive or after a clean local Close().
	Err() error

	// Done returns a channel that is closed when the session ends for any
	// reason.
	Done() <-chan struct{}

	// Close ends the session and releases its resources. Pending calls
	// fail, and every later operation returns ErrSessionClosed. Safe to
	// call multiple times.
	Close() error
}

// NewClient creates a client for the given endpoint. The client is not
// connected; call Connect() to establish the session:
//
//	client := toolmesh.NewClient("wss://mesh.example.com/ws",
//	    toolmesh.WithToken(token),
//	)
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
func NewClient(endpoint string, opts ...Option) Client {
	return newClientImpl(endpoint, opts)
}
