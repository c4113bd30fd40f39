package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/toolmesh-go/internal/config"
	"github.com/toolmesh/toolmesh-go/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoServer upgrades to WebSocket and echoes every message back.
func echoServer(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close(websocket.StatusNormalClosure, "")

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestTransport(endpoint string) *Transport {
	opts := &config.Options{Endpoint: endpoint}
	opts.Normalize()

	return New(testLogger(), opts)
}

func TestRoundTrip(t *testing.T) {
	url := echoServer(t)

	tr := newTestTransport(url)
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))

	t.Cleanup(func() {
		_ = tr.Close()
	})

	msgs, errs := tr.ReadMessages(ctx)

	require.NoError(t, tr.SendMessage(ctx, []byte(`{"hello":"world"}`)))

	select {
	case data := <-msgs:
		assert.JSONEq(t, `{"hello":"world"}`, string(data))
	case err := <-errs:
		t.Fatalf("read error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestAuthHeaders(t *testing.T) {
	headerCh := make(chan http.Header, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerCh <- r.Header.Clone()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)

	opts := &config.Options{
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:    "tok-1",
		APIKey:   "key-1",
	}
	opts.Normalize()

	tr := New(testLogger(), opts)
	require.NoError(t, tr.Start(context.Background()))

	t.Cleanup(func() {
		_ = tr.Close()
	})

	header := <-headerCh
	assert.Equal(t, "Bearer tok-1", header.Get("Authorization"))
	assert.Equal(t, "key-1", header.Get("X-API-Key"))
}

func TestDialFailure(t *testing.T) {
	tr := newTestTransport("ws://127.0.0.1:1/nope")

	err := tr.Start(context.Background())
	require.Error(t, err)

	var dialErr *errors.DialError

	require.ErrorAs(t, err, &dialErr)
	assert.Equal(t, "ws://127.0.0.1:1/nope", dialErr.Endpoint)
}

func TestStartTwice(t *testing.T) {
	url := echoServer(t)

	tr := newTestTransport(url)
	require.NoError(t, tr.Start(context.Background()))

	t.Cleanup(func() {
		_ = tr.Close()
	})

	err := tr.Start(context.Background())
	require.ErrorIs(t, err, errors.ErrAlreadyConnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	url := echoServer(t)

	tr := newTestTransport(url)
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.SendMessage(context.Background(), []byte("{}"))
	require.Error(t, err)
}

func TestReadChannelsCloseOnPeerDisconnect(t *testing.T) {
	// Accepted WebSockets are hijacked, so the test server cannot close
	// them for us; the handler drops the connection when signalled.
	drop := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		<-drop

		_ = conn.Close(websocket.StatusInternalError, "going away")
	}))
	t.Cleanup(srv.Close)

	tr := newTestTransport("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, tr.Start(context.Background()))

	t.Cleanup(func() {
		_ = tr.Close()
	})

	msgs, errs := tr.ReadMessages(context.Background())

	close(drop)

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for read error")
	}

	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "message channel should close on disconnect")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
