package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/toolmesh/toolmesh-go/internal/config"
	"github.com/toolmesh/toolmesh-go/internal/errors"
)

// mockTransport is an in-memory channel for driving the correlator directly.
type mockTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error

	msgs chan []byte
	errs chan error

	closeOnce sync.Once

	// echo, when set, answers every request with a response carrying the
	// request's params as its result, after an optional random delay.
	echo      bool
	echoDelay time.Duration
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		msgs: make(chan []byte, 128),
		errs: make(chan error, 1),
	}
}

func (m *mockTransport) Start(_ context.Context) error { return nil }

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return m.msgs, m.errs
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()

	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()

		return err
	}

	m.sent = append(m.sent, data)
	echo, delay := m.echo, m.echoDelay
	m.mu.Unlock()

	if echo {
		go m.reply(data, delay)
	}

	return nil
}

func (m *mockTransport) reply(request []byte, maxDelay time.Duration) {
	var env struct {
		ID     *int64          `json:"id"`
		Params json.RawMessage `json:"params"`
	}

	if err := json.Unmarshal(request, &env); err != nil || env.ID == nil {
		return
	}

	if maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(maxDelay))))
	}

	m.deliver(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, *env.ID, string(env.Params)))
}

func (m *mockTransport) deliver(raw string) {
	m.msgs <- []byte(raw)
}

func (m *mockTransport) Close() error {
	m.closeOnce.Do(func() {
		close(m.msgs)
	})

	return nil
}

// sentEnvelopes takes rapid.TB so both the plain tests and the rapid
// property tests can inspect the outbound traffic.
func (m *mockTransport) sentEnvelopes(t rapid.TB) []map[string]any {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]map[string]any, 0, len(m.sent))

	for _, data := range m.sent {
		var env map[string]any
		require.NoError(t, json.Unmarshal(data, &env))
		out = append(out, env)
	}

	return out
}

func newTestCorrelator(transport config.Transport) *Correlator {
	opts := &config.Options{}
	opts.Normalize()

	return NewCorrelator(slog.Default(), transport, opts)
}

func TestCorrelator_CallMatchesResponse(t *testing.T) {
	transport := newMockTransport()
	transport.echo = true

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	result, err := c.Call(context.Background(), "tools/list", []byte(`{"cursor":"abc"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cursor":"abc"}`, string(result))
}

func TestCorrelator_IDsStrictlyIncreasing(t *testing.T) {
	transport := newMockTransport()
	transport.echo = true

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	for range 5 {
		_, err := c.Call(context.Background(), "ping", []byte(`{}`))
		require.NoError(t, err)
	}

	var last float64

	for i, env := range transport.sentEnvelopes(t) {
		id, ok := env["id"].(float64)
		require.True(t, ok, "request %d has no numeric id", i)
		assert.Greater(t, id, last, "ids must be strictly increasing")
		last = id
	}

	assert.Equal(t, float64(5), last, "counter starts at 1 and increments by 1")
}

func TestCorrelator_ConcurrentCallsRouteByID(t *testing.T) {
	transport := newMockTransport()
	transport.echo = true
	transport.echoDelay = 2 * time.Millisecond

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	const callers = 50

	var wg sync.WaitGroup

	failures := make(chan error, callers)

	for i := range callers {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			params := fmt.Sprintf(`{"caller":%d}`, n)

			result, err := c.Call(context.Background(), "tools/call", []byte(params))
			if err != nil {
				failures <- err

				return
			}

			var got struct {
				Caller int `json:"caller"`
			}

			if err := json.Unmarshal(result, &got); err != nil {
				failures <- err

				return
			}

			if got.Caller != n {
				failures <- fmt.Errorf("caller %d received result for caller %d", n, got.Caller)
			}
		}(i)
	}

	wg.Wait()
	close(failures)

	for err := range failures {
		t.Error(err)
	}
}

func TestCorrelator_RemoteError(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	go func() {
		// Wait for the request to be written, then reject it.
		for {
			transport.mu.Lock()
			n := len(transport.sent)
			transport.mu.Unlock()

			if n > 0 {
				break
			}

			time.Sleep(time.Millisecond)
		}

		transport.deliver(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	}()

	_, err := c.Call(context.Background(), "nosuch/method", []byte(`{}`))

	var remote *errors.RemoteError

	require.ErrorAs(t, err, &remote)
	assert.Equal(t, -32601, remote.Code)
	assert.Equal(t, "method not found", remote.Message)
}

func TestCorrelator_ChannelCloseFailsAllPending(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	const pending = 16

	var wg sync.WaitGroup

	results := make(chan error, pending)

	for range pending {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := c.Call(context.Background(), "tools/call", []byte(`{}`))
			results <- err
		}()
	}

	// Let all callers register, then kill the channel.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, transport.Close())

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pending calls left unresolved after channel close")
	}

	close(results)

	count := 0

	for err := range results {
		count++

		var transportErr *errors.TransportError

		require.ErrorAs(t, err, &transportErr, "every pending call fails with TransportError")
	}

	assert.Equal(t, pending, count)

	// Calls issued after the failure are refused locally.
	_, err := c.Call(context.Background(), "tools/call", []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrSessionClosed)
}

func TestCorrelator_StopFailsPendingWithSessionClosed(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	results := make(chan error, 1)

	go func() {
		_, err := c.Call(context.Background(), "tools/call", []byte(`{}`))
		results <- err
	}()

	// Let the caller register, then shut down locally.
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	select {
	case err := <-results:
		require.ErrorIs(t, err, errors.ErrSessionClosed)

		var transportErr *errors.TransportError

		assert.False(t, stderrors.As(err, &transportErr), "local shutdown is not a transport fault")
	case <-time.After(5 * time.Second):
		t.Fatal("pending call left unresolved after Stop")
	}
}

func TestCorrelator_UnmatchedResponseDropped(t *testing.T) {
	transport := newMockTransport()
	transport.echo = true

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	transport.deliver(`{"jsonrpc":"2.0","id":999,"result":{}}`)

	// An in-flight call is unaffected by the stray response.
	result, err := c.Call(context.Background(), "tools/list", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestCorrelator_MalformedMessageIsFatal(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := c.Call(context.Background(), "tools/list", []byte(`{}`))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	transport.deliver(`this is not json`)

	select {
	case err := <-errCh:
		var violation *errors.ProtocolViolationError

		require.ErrorAs(t, err, &violation)
		assert.Equal(t, "this is not json", violation.RawData)
	case <-time.After(5 * time.Second):
		t.Fatal("pending call not failed by protocol violation")
	}

	// The session is dead: new calls are refused without touching the channel.
	_, err := c.Call(context.Background(), "tools/list", []byte(`{}`))

	var violation *errors.ProtocolViolationError

	require.ErrorAs(t, err, &violation)
}

func TestCorrelator_AbandonedCallDiscardsLateResponse(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := c.Call(ctx, "tools/call", []byte(`{}`))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)

	// The late response for the abandoned id must be discarded without
	// affecting the next call.
	transport.deliver(`{"jsonrpc":"2.0","id":1,"result":{"stale":true}}`)

	transport.mu.Lock()
	transport.echo = true
	transport.mu.Unlock()

	result, err := c.Call(context.Background(), "tools/list", []byte(`{"fresh":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"fresh":true}`, string(result))
}

func TestCorrelator_CallAfterStop(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())
	c.Stop()

	_, err := c.Call(context.Background(), "tools/list", []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrSessionClosed)

	err = c.Notify(context.Background(), "initialized", []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrSessionClosed)

	assert.Empty(t, transport.sentEnvelopes(t), "closed session must not touch the channel")
}

func TestCorrelator_NotificationsForwarded(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	transport.deliver(`{"jsonrpc":"2.0","method":"tools/updated","params":{"reason":"registry"}}`)

	select {
	case env := <-c.Notifications():
		assert.Equal(t, "tools/updated", env.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not forwarded")
	}
}

func TestCorrelator_NotifyHasNoID(t *testing.T) {
	transport := newMockTransport()

	c := newTestCorrelator(transport)
	c.Start(context.Background())

	defer c.Stop()

	require.NoError(t, c.Notify(context.Background(), "initialized", []byte(`{}`)))

	envs := transport.sentEnvelopes(t)
	require.Len(t, envs, 1)
	assert.NotContains(t, envs[0], "id")
	assert.Equal(t, "initialized", envs[0]["method"])
}

func TestCorrelator_StopConcurrentWithFatalError(t *testing.T) {
	// Verifies no panic or double-close when a transport failure races Stop.
	// Run with: go test -race -count=100
	for range 100 {
		transport := newMockTransport()

		c := newTestCorrelator(transport)
		c.Start(context.Background())

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			c.setFatalError(&errors.TransportError{Err: stderrors.New("boom")})
		}()

		go func() {
			defer wg.Done()

			c.Stop()
		}()

		wg.Wait()

		select {
		case <-c.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}
