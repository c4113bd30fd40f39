package config

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultProtocolVersion is declared in the initialize request unless
// overridden. The server may negotiate during the handshake.
const DefaultProtocolVersion = "1.0"

// Default client identity sent in the initialize request.
const (
	DefaultClientName    = "toolmesh-go"
	DefaultClientVersion = "0.1.0"
)

// Default timeouts and buffer sizes. The core exposes no built-in per-call
// timeout; callers bound calls with their context.
const (
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultNotificationBuffer = 16
)

// Info identifies one party of the handshake.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Options holds session configuration. Public option functions in the root
// package populate this struct.
type Options struct {
	// Endpoint is the channel URL, e.g. "wss://mesh.example.com/ws".
	// Ignored when Transport is set.
	Endpoint string

	// Token is the bearer credential presented at connect time.
	Token string

	// APIKey is an alternative credential sent as an X-API-Key header.
	APIKey string

	// Transport overrides the default WebSocket transport.
	Transport Transport

	// ClientInfo identifies this client in the initialize request.
	ClientInfo Info

	// ProtocolVersion is the protocol version declared at handshake.
	ProtocolVersion string

	// Logger receives debug output. Nil means silent operation.
	Logger *slog.Logger

	// HTTPClient is used for the WebSocket dial. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// HandshakeTimeout bounds the transport dial.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound envelope write.
	WriteTimeout time.Duration

	// NotificationBuffer is the capacity of the server-notification channel.
	// When full, further notifications are dropped with a debug log.
	NotificationBuffer int
}

// Normalize fills unset fields with defaults.
func (o *Options) Normalize() {
	if o.ClientInfo.Name == "" {
		o.ClientInfo.Name = DefaultClientName
	}

	if o.ClientInfo.Version == "" {
		o.ClientInfo.Version = DefaultClientVersion
	}

	if o.ProtocolVersion == "" {
		o.ProtocolVersion = DefaultProtocolVersion
	}

	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}

	if o.NotificationBuffer == 0 {
		o.NotificationBuffer = DefaultNotificationBuffer
	}
}
