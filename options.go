package toolmesh

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a session using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithToken sets the bearer credential presented when the channel is opened.
func WithToken(token string) Option {
	return func(o *Options) {
		o.Token = token
	}
}

// WithAPIKey sets an API key credential, sent as an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithClientInfo sets the client identity declared in the initialize request.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientInfo = Info{Name: name, Version: version}
	}
}

// WithProtocolVersion overrides the protocol version declared at handshake.
// The server may negotiate a different one; see Client.ProtocolVersion.
func WithProtocolVersion(version string) Option {
	return func(o *Options) {
		o.ProtocolVersion = version
	}
}

// WithTransport injects a custom channel implementation, replacing the
// default WebSocket transport. The endpoint is ignored when set.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithHTTPClient sets the HTTP client used for the WebSocket dial. Useful
// for proxies and custom TLS configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = hc
	}
}

// WithHandshakeTimeout bounds connection establishment and the initialize
// exchange. Defaults to 10 seconds.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = d
	}
}

// WithWriteTimeout bounds each outbound message write. Defaults to
// 30 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

// WithNotificationBuffer sets the capacity of the server-notification
// channel. A consumer that falls behind loses notifications rather than
// stalling the session. Defaults to 16.
func WithNotificationBuffer(n int) Option {
	return func(o *Options) {
		o.NotificationBuffer = n
	}
}
