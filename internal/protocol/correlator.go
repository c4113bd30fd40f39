package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/toolmesh/toolmesh-go/internal/config"
	"github.com/toolmesh/toolmesh-go/internal/errors"
	"github.com/toolmesh/toolmesh-go/internal/wire"
)

// Correlator multiplexes many logical callers over one channel.
//
// The Correlator handles:
//   - Allocating monotonically increasing request ids, advanced under the
//     same exclusive section as the outbound write
//   - Routing inbound responses to the waiting caller by id
//   - Broadcasting a fatal channel failure to every pending call exactly once
//   - Discarding late responses for calls the caller has abandoned
//   - Forwarding server notifications to a bounded event channel
//
// Each call suspends only its own caller: the wait for a response never
// holds the write lock. The Correlator must be started with Start() before
// use and owns a single goroutine that drains the channel.
type Correlator struct {
	log       *slog.Logger
	transport config.Transport

	writeTimeout time.Duration

	// writeMu serializes outbound writes. The id counter is owned by this
	// lock too: allocation and write happen in one short-held section.
	writeMu sync.Mutex
	nextID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan *wire.Envelope

	// Server notifications forwarded to consumers; never blocks the read loop.
	notifications chan *wire.Envelope

	// Fatal error handling - stores error and broadcasts via done channel.
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewCorrelator creates a correlator over the given transport. The transport
// must be started before calling Start().
func NewCorrelator(log *slog.Logger, transport config.Transport, opts *config.Options) *Correlator {
	return &Correlator{
		log:           log.With("component", "correlator"),
		transport:     transport,
		writeTimeout:  opts.WriteTimeout,
		pending:       make(map[int64]chan *wire.Envelope, 10),
		notifications: make(chan *wire.Envelope, opts.NotificationBuffer),
		done:          make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Correlator) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores a fatal error and broadcasts to all waiters by
// closing done. Only the first error is kept.
func (c *Correlator) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Correlator) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the correlator stops.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// Notifications returns the channel of server notifications. The channel is
// bounded; when consumers fall behind, further notifications are dropped.
// It is closed when the correlator stops.
func (c *Correlator) Notifications() <-chan *wire.Envelope {
	return c.notifications
}

// Start begins draining the channel and routing responses to waiters.
//
// It spawns a single reader goroutine; the goroutine stops when the context
// is cancelled, the channel closes, or a protocol violation is detected.
func (c *Correlator) Start(ctx context.Context) {
	msgs, errs := c.transport.ReadMessages(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, msgs, errs)

	c.log.Debug("correlator started")
}

// Stop shuts the correlator down and no new calls are accepted. Safe to
// call multiple times.
//
// Pending calls fail according to why the session ended: a channel failure
// surfaces as the stored TransportError or ProtocolViolationError, while a
// deliberate local Stop fails them with plain ErrSessionClosed. The caller
// chose to end the session, so the closure is not reported as a transport
// fault.
func (c *Correlator) Stop() {
	c.closeDone()
	c.wg.Wait()
	c.log.Debug("correlator stopped")
}

// exitErr is the error an in-flight call fails with when done closes: the
// channel's fatal error when there is one, otherwise plain local closure.
func (c *Correlator) exitErr() error {
	if err := c.FatalError(); err != nil {
		return err
	}

	return errors.ErrSessionClosed
}

// entryErr is the error a new call is refused with after teardown. It is
// always ErrSessionClosed, with the terminating failure attached as context.
func (c *Correlator) entryErr() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSessionClosed, err)
	}

	return errors.ErrSessionClosed
}

// Call sends a request and blocks until the matching response arrives, the
// caller's context is cancelled, or the session dies. From the caller's
// viewpoint it is one logical operation, though it spans two I/O events.
//
// A response carrying an error object fails the call with *RemoteError.
// Context cancellation abandons the call locally: the pending slot is
// removed, no cancellation notice is sent upstream, and a late response for
// the abandoned id is silently discarded.
func (c *Correlator) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, c.entryErr()
	default:
	}

	// Buffered so dispatch never blocks on a slow caller.
	respChan := make(chan *wire.Envelope, 1)

	id, err := c.sendRequest(ctx, method, params, respChan)
	if err != nil {
		return nil, err
	}

	select {
	case env := <-respChan:
		if env.Error != nil {
			return nil, &errors.RemoteError{Code: env.Error.Code, Message: env.Error.Message}
		}

		return env.Result, nil

	case <-c.done:
		c.removePending(id)

		return nil, c.exitErr()

	case <-ctx.Done():
		c.removePending(id)
		c.log.Debug("call abandoned", "id", id, "method", method)

		return nil, ctx.Err()
	}
}

// Notify sends a one-way notification. It returns once the envelope has been
// written to the channel; no response is expected or awaited.
func (c *Correlator) Notify(ctx context.Context, method string, params json.RawMessage) error {
	select {
	case <-c.done:
		return c.entryErr()
	default:
	}

	data, err := wire.Encode(wire.NewNotification(method, params))
	if err != nil {
		return err
	}

	return c.write(ctx, data)
}

// sendRequest allocates the next id, registers the pending call, and writes
// the request envelope, all before releasing the write lock. Registration
// precedes the write so a fast response can never miss its waiter.
func (c *Correlator) sendRequest(
	ctx context.Context,
	method string,
	params json.RawMessage,
	respChan chan *wire.Envelope,
) (int64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.nextID == math.MaxInt64 {
		return 0, errors.ErrIDExhausted
	}

	c.nextID++
	id := c.nextID

	data, err := wire.Encode(wire.NewRequest(id, method, params))
	if err != nil {
		return 0, err
	}

	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	wCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.transport.SendMessage(wCtx, data); err != nil {
		c.removePending(id)

		return 0, &errors.TransportError{Err: err}
	}

	return id, nil
}

// write sends a pre-encoded envelope under the write lock.
func (c *Correlator) write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	wCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.transport.SendMessage(wCtx, data); err != nil {
		return &errors.TransportError{Err: err}
	}

	return nil
}

// removePending drops the pending slot for id, if still present.
func (c *Correlator) removePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop is the single serialized consumer of the channel.
func (c *Correlator) readLoop(ctx context.Context, msgs <-chan []byte, errs <-chan error) {
	defer c.wg.Done()
	defer close(c.notifications)
	defer c.log.Debug("read loop stopped")

	for {
		select {
		case data, ok := <-msgs:
			if !ok {
				c.setFatalError(&errors.TransportError{Err: stderrors.New("channel closed")})

				return
			}

			if !c.dispatch(data) {
				return
			}

		case err, ok := <-errs:
			if !ok {
				c.setFatalError(&errors.TransportError{Err: stderrors.New("channel closed")})

				return
			}

			if err != nil {
				c.setFatalError(&errors.TransportError{Err: err})

				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			c.setFatalError(&errors.TransportError{Err: ctx.Err()})

			return
		}
	}
}

// dispatch routes one inbound message. It returns false when the message is
// fatal to the read loop.
func (c *Correlator) dispatch(data []byte) bool {
	env, err := wire.Decode(data)
	if err != nil {
		// The correlation invariant cannot be trusted past a malformed
		// message; treat it exactly like a channel failure.
		c.setFatalError(&errors.ProtocolViolationError{RawData: string(data), Err: err})

		return false
	}

	switch env.Kind() {
	case wire.KindResponse:
		c.dispatchResponse(env)

	case wire.KindNotification:
		select {
		case c.notifications <- env:
		default:
			c.log.Debug("notification buffer full, dropping", "method", env.Method)
		}

	case wire.KindRequest:
		// The service never calls back into this client.
		c.log.Warn("dropping unexpected inbound request", "method", env.Method, "id", *env.ID)

	case wire.KindInvalid:
		// Unreachable: Decode already rejected invalid kinds.
	}

	return true
}

// dispatchResponse claims the pending slot for the response id and delivers
// it. An id with no pending call means the caller already abandoned
// interest; the response is dropped without affecting any other call.
func (c *Correlator) dispatchResponse(env *wire.Envelope) {
	id := *env.ID

	c.pendingMu.Lock()

	respChan, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Debug("dropping unmatched response", "id", id)

		return
	}

	// We own the slot now; the channel is buffered, so this never blocks.
	respChan <- env
}
