package toolmesh

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards all output. Pass it to
// WithLogger to silence the session and protocol debug records a client
// emits, for example in tests or short-lived CLI invocations.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
