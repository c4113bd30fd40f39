// Package ws implements the default Transport over a WebSocket channel.
//
// One text message carries exactly one JSON envelope. The bearer credential
// is presented as an Authorization header at connect time; correlation and
// envelope semantics live above this package.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/toolmesh/toolmesh-go/internal/config"
	"github.com/toolmesh/toolmesh-go/internal/errors"
)

// maxMessageSize bounds a single inbound envelope. Batch results can be
// large, so this is well above the library default.
const maxMessageSize = 16 << 20

// Transport is a WebSocket-backed channel to the tool-execution service.
type Transport struct {
	log *slog.Logger

	endpoint         string
	token            string
	apiKey           string
	httpClient       *http.Client
	handshakeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Compile-time check that *Transport implements config.Transport.
var _ config.Transport = (*Transport)(nil)

// New builds an unconnected transport from options. Call Start to dial.
func New(log *slog.Logger, opts *config.Options) *Transport {
	return &Transport{
		log:              log.With("component", "ws"),
		endpoint:         opts.Endpoint,
		token:            opts.Token,
		apiKey:           opts.APIKey,
		httpClient:       opts.HTTPClient,
		handshakeTimeout: opts.HandshakeTimeout,
	}
}

// Start dials the endpoint and performs the WebSocket handshake.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.ErrSessionClosed
	}

	if t.conn != nil {
		return errors.ErrAlreadyConnected
	}

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}

	if t.apiKey != "" {
		header.Set("X-API-Key", t.apiKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.handshakeTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, t.endpoint, &websocket.DialOptions{
		HTTPClient: t.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}

		return &errors.DialError{Endpoint: t.endpoint, Err: err}
	}

	conn.SetReadLimit(maxMessageSize)
	t.conn = conn

	t.log.Debug("channel established", "endpoint", t.endpoint)

	return nil
}

// ReadMessages starts the single reader of the connection. Both returned
// channels close when the connection drops or the context is cancelled.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	msgs := make(chan []byte, 16)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	go func() {
		defer close(msgs)
		defer close(errs)

		if conn == nil {
			errs <- &errors.TransportError{Err: fmt.Errorf("transport not started")}

			return
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				// Normal closure still fails pending calls upstream; the
				// distinction matters only for logging.
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					t.log.Debug("channel closed by peer")
				} else {
					t.log.Debug("channel read failed", "error", err)
				}

				errs <- err

				return
			}

			select {
			case msgs <- data:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}
	}()

	return msgs, errs
}

// SendMessage writes one envelope as a single text message.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()

	if closed {
		return errors.ErrSessionClosed
	}

	if conn == nil {
		return fmt.Errorf("transport not started")
	}

	return conn.Write(ctx, websocket.MessageText, data)
}

// Close shuts the connection down. Safe to call multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close(websocket.StatusNormalClosure, "session closed")
	t.conn = nil

	// A handshake-level close error after the peer vanished is routine.
	if err != nil {
		t.log.Debug("channel close", "error", err)
	}

	return nil
}
