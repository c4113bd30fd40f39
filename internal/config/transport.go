// Package config provides configuration types for the toolmesh SDK.
package config

import "context"

// Transport defines the interface for the persistent, full-duplex,
// message-oriented channel to the tool-execution service. Implement this to
// provide custom transports for testing, mocking, or alternative carriers.
//
// The default implementation dials a WebSocket endpoint. Custom transports
// can be injected via Options.Transport.
type Transport interface {
	// Start establishes the channel and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving raw messages and errors.
	// The message channel yields one complete JSON envelope per receive.
	// The error channel yields any error that occurs during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage writes one complete JSON envelope to the channel.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the channel and releases resources.
	// It's safe to call Close multiple times.
	Close() error
}
