// Package client implements the session engine behind the public API.
//
// A Client owns exactly one session over one channel. It drives the
// lifecycle (Disconnected, Connected, Initializing, Ready, Closed), runs the
// initialize handshake, and exposes the session operations: tool listing and
// invocation, batched tool calls, and the server-held context document.
//
// The client composes the protocol package's Correlator for request
// correlation and manages its own goroutine for notification forwarding.
// Sessions are single use: once a session is Closed, whether by Close() or
// by channel failure, the client cannot be reconnected.
package client
