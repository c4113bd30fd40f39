package toolmesh

import (
	"context"
	"encoding/json"

	"github.com/toolmesh/toolmesh-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl(endpoint string, opts []Option) Client {
	options := applyOptions(opts)
	options.Endpoint = endpoint

	return &clientWrapper{impl: client.New(options)}
}

// Connect opens the channel and completes the handshake.
func (c *clientWrapper) Connect(ctx context.Context) error {
	return c.impl.Connect(ctx)
}

// Ping checks channel liveness with a no-op round trip.
func (c *clientWrapper) Ping(ctx context.Context) error {
	return c.impl.Ping(ctx)
}

// ListTools returns the tools the server currently exposes.
func (c *clientWrapper) ListTools(ctx context.Context) ([]Tool, error) {
	return c.impl.ListTools(ctx)
}

// CallTool invokes one tool and returns its raw result.
func (c *clientWrapper) CallTool(
	ctx context.Context,
	name string,
	arguments map[string]any,
) (json.RawMessage, error) {
	return c.impl.CallTool(ctx, name, arguments)
}

// CallToolsBatch submits several tool calls as one request.
func (c *clientWrapper) CallToolsBatch(
	ctx context.Context,
	calls []BatchCall,
	parallel bool,
) (*BatchResult, error) {
	return c.impl.CallToolsBatch(ctx, calls, parallel)
}

// GetContext fetches the session's server-held context document.
func (c *clientWrapper) GetContext(ctx context.Context) (ContextDocument, error) {
	return c.impl.GetContext(ctx)
}

// UpdateContext writes the context document.
func (c *clientWrapper) UpdateContext(ctx context.Context, doc ContextDocument, merge bool) error {
	return c.impl.UpdateContext(ctx, doc, merge)
}

// ServerInfo returns the server identity reported during the handshake.
func (c *clientWrapper) ServerInfo() Info {
	return c.impl.ServerInfo()
}

// ProtocolVersion returns the negotiated protocol version.
func (c *clientWrapper) ProtocolVersion() string {
	return c.impl.ProtocolVersion()
}

// Capabilities returns the raw capability object from the handshake.
func (c *clientWrapper) Capabilities() json.RawMessage {
	return c.impl.Capabilities()
}

// Supports reports whether the server advertised the named capability.
func (c *clientWrapper) Supports(name string) bool {
	return c.impl.Supports(name)
}

// Notifications returns the channel of server notifications.
func (c *clientWrapper) Notifications() <-chan Notification {
	return c.impl.Notifications()
}

// State returns the current lifecycle state.
func (c *clientWrapper) State() State {
	return c.impl.State()
}

// ID returns the local session identifier.
func (c *clientWrapper) ID() string {
	return c.impl.ID()
}

// Err returns the error that terminated the session, if any.
func (c *clientWrapper) Err() error {
	return c.impl.Err()
}

// Done returns a channel that is closed when the session ends.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Close ends the session and releases its resources.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
