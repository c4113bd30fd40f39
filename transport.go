package toolmesh

import "github.com/toolmesh/toolmesh-go/internal/config"

// Transport defines the interface for the persistent message channel.
// Implement this to provide custom transports for testing, mocking,
// or alternative framing (e.g., pipes or an in-process loopback).
//
// The default implementation is a WebSocket channel dialed against the
// configured endpoint. Custom transports are injected via WithTransport.
type Transport = config.Transport
