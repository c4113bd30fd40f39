package toolmesh

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// This helper creates a client, connects it with the provided options,
// executes the callback function, and ensures proper cleanup via Close()
// when done.
//
// The callback receives a Ready client. If the callback returns an error,
// it is returned to the caller. If Close() fails, a warning is logged but
// does not override the callback's error.
//
// Example usage:
//
//	err := toolmesh.WithSession(ctx, "wss://mesh.example.com/ws",
//	    func(c toolmesh.Client) error {
//	        tools, err := c.ListTools(ctx)
//	        if err != nil {
//	            return err
//	        }
//	        for _, tool := range tools {
//	            fmt.Println(tool.Name)
//	        }
//	        return nil
//	    },
//	    toolmesh.WithToken(token),
//	)
func WithSession(ctx context.Context, endpoint string, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient(endpoint, opts...)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	return fn(client)
}
