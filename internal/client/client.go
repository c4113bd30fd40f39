package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/toolmesh/toolmesh-go/internal/config"
	"github.com/toolmesh/toolmesh-go/internal/errors"
	"github.com/toolmesh/toolmesh-go/internal/protocol"
	"github.com/toolmesh/toolmesh-go/internal/wire"
	"github.com/toolmesh/toolmesh-go/internal/ws"
)

// emptyParams is the params object for operations that carry no arguments.
var emptyParams = json.RawMessage(`{}`)

// Client owns one session over one channel: it establishes the connection,
// runs the handshake, exposes the tool and context operations, and tears the
// session down. Sessions are single use; after Close() create a new client.
type Client struct {
	log       *slog.Logger
	options   *config.Options
	transport config.Transport
	corr      *protocol.Correlator

	// id is the local session identifier, attached to every log line.
	id string

	// Snapshot taken during the handshake; immutable once Ready.
	serverInfo      config.Info
	protocolVersion string
	capabilities    json.RawMessage

	// Server notifications forwarded from the correlator.
	notifications chan Notification

	// Errgroup for goroutine management
	eg     *errgroup.Group
	cancel context.CancelFunc

	// Lifecycle management
	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

// New creates a disconnected client. Call Connect() to establish the session.
func New(options *config.Options) *Client {
	if options == nil {
		options = &config.Options{}
	}

	options.Normalize()

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	id := ulid.Make().String()

	return &Client{
		log:           log.With("component", "client", "session_id", id),
		options:       options,
		id:            id,
		notifications: make(chan Notification, options.NotificationBuffer),
		state:         StateDisconnected,
	}
}

// ID returns the local session identifier.
func (c *Client) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// setStateLocked transitions the lifecycle state. Caller must hold c.mu.
func (c *Client) setStateLocked(s State) {
	c.state = s
	c.log.Debug("state changed", "state", s.String())
}

// Connect opens the channel and completes the handshake. On return the
// session is Ready and all operations are available.
//
// The given context bounds connection establishment and the handshake only;
// the session itself stays up until Close() or a channel failure. A client
// that fails to connect is Closed and cannot be retried.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return errors.ErrSessionClosed
	case StateDisconnected:
	default:
		return errors.ErrAlreadyConnected
	}

	transport := c.options.Transport
	if transport == nil {
		transport = ws.New(c.log, c.options)
	}

	if err := transport.Start(ctx); err != nil {
		c.setStateLocked(StateClosed)

		return fmt.Errorf("start transport: %w", err)
	}

	c.transport = transport
	c.setStateLocked(StateConnected)

	// The session outlives the Connect context: a handshake deadline must
	// not kill the read loop once the session is up.
	sessionCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.corr = protocol.NewCorrelator(c.log, transport, c.options)
	c.corr.Start(sessionCtx)

	c.eg, _ = errgroup.WithContext(sessionCtx)
	c.eg.Go(c.forwardNotifications)

	c.setStateLocked(StateInitializing)

	handshakeCtx, done := context.WithTimeout(ctx, c.options.HandshakeTimeout)
	defer done()

	if err := c.handshake(handshakeCtx); err != nil {
		c.teardownLocked()

		return fmt.Errorf("handshake: %w", err)
	}

	c.setStateLocked(StateReady)
	c.log.Info("session ready",
		"server", c.serverInfo.Name,
		"server_version", c.serverInfo.Version,
		"protocol_version", c.protocolVersion)

	return nil
}

// handshake runs the initialize exchange and confirms it. Ready is reached
// only after the confirmation notification has been written to the channel.
func (c *Client) handshake(ctx context.Context) error {
	params, err := json.Marshal(struct {
		ProtocolVersion string      `json:"protocolVersion"`
		ClientInfo      config.Info `json:"clientInfo"`
	}{
		ProtocolVersion: c.options.ProtocolVersion,
		ClientInfo:      c.options.ClientInfo,
	})
	if err != nil {
		return fmt.Errorf("marshal initialize params: %w", err)
	}

	result, err := c.corr.Call(ctx, wire.MethodInitialize, params)
	if err != nil {
		return err
	}

	var init struct {
		ProtocolVersion string          `json:"protocolVersion"`
		ServerInfo      config.Info     `json:"serverInfo"`
		Capabilities    json.RawMessage `json:"capabilities"`
	}

	if err := json.Unmarshal(result, &init); err != nil {
		return fmt.Errorf("decode initialize result: %w", err)
	}

	c.serverInfo = init.ServerInfo
	c.capabilities = init.Capabilities

	c.protocolVersion = init.ProtocolVersion
	if c.protocolVersion == "" {
		c.protocolVersion = c.options.ProtocolVersion
	}

	return c.corr.Notify(ctx, wire.MethodInitialized, emptyParams)
}

// forwardNotifications copies server notifications from the correlator into
// the client's channel until the session ends.
func (c *Client) forwardNotifications() error {
	defer close(c.notifications)

	for env := range c.corr.Notifications() {
		n := Notification{Method: env.Method, Params: env.Params}

		select {
		case c.notifications <- n:
		default:
			c.log.Debug("dropping notification, consumer not keeping up",
				"method", env.Method)
		}
	}

	return nil
}

// ensureReady gates every session operation on the lifecycle state.
func (c *Client) ensureReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		return nil
	case StateClosed:
		return errors.ErrSessionClosed
	default:
		return errors.ErrNotReady
	}
}

// call gates on readiness and issues a request through the correlator.
func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	return c.corr.Call(ctx, method, params)
}

// Ping checks channel liveness with a no-op round trip.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, wire.MethodPing, emptyParams)

	return err
}

// ListTools returns the tools the server currently exposes. The result is
// never nil; a server with no tools yields an empty slice.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.call(ctx, wire.MethodToolsList, emptyParams)
	if err != nil {
		return nil, err
	}

	var out struct {
		Tools []Tool `json:"tools"`
	}

	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}

	if out.Tools == nil {
		out.Tools = []Tool{}
	}

	return out.Tools, nil
}

// CallTool invokes a single tool by name and returns its raw result. A
// failure reported by the server surfaces as *RemoteError.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	params, err := json.Marshal(struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}{Name: name, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("marshal tools/call params: %w", err)
	}

	return c.call(ctx, wire.MethodToolsCall, params)
}

// CallToolsBatch submits several tool calls as one request. The server
// decides execution order unless parallel is set; per-call failures land in
// the per-id outcomes rather than failing the batch.
//
// Entries with an empty ID get one assigned; duplicate ids are rejected
// locally with ErrDuplicateCallID before anything is written.
func (c *Client) CallToolsBatch(ctx context.Context, calls []BatchCall, parallel bool) (*BatchResult, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	prepared := make([]BatchCall, len(calls))
	seen := make(map[string]struct{}, len(calls))

	for i, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		if _, dup := seen[call.ID]; dup {
			return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateCallID, call.ID)
		}

		seen[call.ID] = struct{}{}
		prepared[i] = call
	}

	params, err := json.Marshal(struct {
		Tools    []BatchCall `json:"tools"`
		Parallel bool        `json:"parallel"`
	}{Tools: prepared, Parallel: parallel})
	if err != nil {
		return nil, fmt.Errorf("marshal tools/batch params: %w", err)
	}

	result, err := c.corr.Call(ctx, wire.MethodToolsBatch, params)
	if err != nil {
		return nil, err
	}

	return decodeBatchResult(result)
}

// decodeBatchResult splits the flat batch result object into the aggregate
// counters and the per-id outcomes.
func decodeBatchResult(result json.RawMessage) (*BatchResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, fmt.Errorf("decode tools/batch result: %w", err)
	}

	br := &BatchResult{Outcomes: make(map[string]BatchOutcome, len(fields))}

	for key, raw := range fields {
		switch key {
		case "success_count":
			if err := json.Unmarshal(raw, &br.SuccessCount); err != nil {
				return nil, fmt.Errorf("decode success_count: %w", err)
			}
		case "error_count":
			if err := json.Unmarshal(raw, &br.ErrorCount); err != nil {
				return nil, fmt.Errorf("decode error_count: %w", err)
			}
		case "duration_ms":
			var ms float64
			if err := json.Unmarshal(raw, &ms); err != nil {
				return nil, fmt.Errorf("decode duration_ms: %w", err)
			}

			br.Duration = time.Duration(ms * float64(time.Millisecond))
		default:
			br.Outcomes[key] = decodeBatchOutcome(raw)
		}
	}

	return br, nil
}

// decodeBatchOutcome interprets one per-call outcome. Outcomes that do not
// follow the result/error shape are kept verbatim as a successful result.
func decodeBatchOutcome(raw json.RawMessage) BatchOutcome {
	var oc BatchOutcome
	if err := json.Unmarshal(raw, &oc); err != nil || (oc.Result == nil && oc.Error == "") {
		oc = BatchOutcome{Result: raw}
	}

	oc.Raw = raw

	return oc
}

// GetContext fetches the session context document from the server.
func (c *Client) GetContext(ctx context.Context) (ContextDocument, error) {
	result, err := c.call(ctx, wire.MethodContextGet, emptyParams)
	if err != nil {
		return nil, err
	}

	var doc ContextDocument
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("decode context.get result: %w", err)
	}

	if doc == nil {
		doc = ContextDocument{}
	}

	return doc, nil
}

// UpdateContext writes the session context. With merge set, the given keys
// are merged into the existing document; otherwise the document is replaced.
// The call returns once the server has acknowledged the update.
func (c *Client) UpdateContext(ctx context.Context, doc ContextDocument, merge bool) error {
	params, err := json.Marshal(struct {
		Context ContextDocument `json:"context"`
		Merge   bool            `json:"merge"`
	}{Context: doc, Merge: merge})
	if err != nil {
		return fmt.Errorf("marshal context.update params: %w", err)
	}

	_, err = c.call(ctx, wire.MethodContextUpdate, params)

	return err
}

// ServerInfo returns the server identity reported during the handshake.
func (c *Client) ServerInfo() config.Info {
	return c.serverInfo
}

// ProtocolVersion returns the negotiated protocol version.
func (c *Client) ProtocolVersion() string {
	return c.protocolVersion
}

// Capabilities returns the raw capability object from the handshake.
func (c *Client) Capabilities() json.RawMessage {
	return c.capabilities
}

// Supports reports whether the server advertised the named capability. A
// capability present with value false or null does not count.
func (c *Client) Supports(name string) bool {
	var caps map[string]json.RawMessage
	if err := json.Unmarshal(c.capabilities, &caps); err != nil {
		return false
	}

	raw, ok := caps[name]
	if !ok {
		return false
	}

	val := string(raw)

	return val != "false" && val != "null"
}

// Notifications returns the channel of server notifications. The channel is
// bounded and closed when the session ends; a consumer that falls behind
// loses notifications rather than stalling the session.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Err returns the error that terminated the session, if any. It reports nil
// while the session is alive or after a clean local Close().
func (c *Client) Err() error {
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()

	if corr == nil {
		return nil
	}

	return corr.FatalError()
}

// Done returns a channel that is closed when the session ends for any
// reason. It reports a session that never connected as already done.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()

	if corr == nil {
		done := make(chan struct{})
		close(done)

		return done
	}

	return corr.Done()
}

// teardownLocked releases session resources after a failed handshake or
// Close(). Caller must hold c.mu; nothing called here reacquires it.
func (c *Client) teardownLocked() {
	c.setStateLocked(StateClosed)

	if c.corr != nil {
		c.corr.Stop()
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.log.Debug("transport close", "error", err)
		}
	}

	if c.eg != nil {
		if err := c.eg.Wait(); err != nil {
			c.log.Debug("goroutine exit", "error", err)
		}
	}
}

// Close ends the session and releases its resources. Pending calls fail,
// the channel is closed, and every later operation returns ErrSessionClosed.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.state == StateDisconnected {
			c.setStateLocked(StateClosed)

			return
		}

		c.log.Info("closing session")
		c.teardownLocked()
		c.log.Info("session closed")
	})

	return nil
}
