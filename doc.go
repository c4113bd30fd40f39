// Package toolmesh provides a Go client for tool-execution services speaking
// the toolmesh JSON message protocol.
//
// A session runs over one persistent, full-duplex channel (WebSocket by
// default). Many concurrent callers share the channel: each request carries
// a session-unique id, and the matching response is routed back to its
// caller regardless of arrival order. Server-initiated notifications arrive
// on a separate channel.
//
// # Basic Usage
//
// Create a client, connect, and call tools:
//
//	ctx := context.Background()
//
//	client := toolmesh.NewClient("wss://mesh.example.com/ws",
//	    toolmesh.WithToken(os.Getenv("TOOLMESH_TOKEN")),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.CallTool(ctx, "github.search", map[string]any{
//	    "query": "language:go stars:>1000",
//	})
//
// Or use WithSession for automatic lifecycle management:
//
//	err := toolmesh.WithSession(ctx, "wss://mesh.example.com/ws",
//	    func(c toolmesh.Client) error {
//	        _, err := c.CallTool(ctx, "weather.current", map[string]any{
//	            "city": "Berlin",
//	        })
//	        return err
//	    },
//	    toolmesh.WithToken(token),
//	)
//
// # Batched Invocation
//
// Several tool calls can travel as one request; per-call failures land in
// the per-id outcomes rather than failing the batch:
//
//	batch, err := client.CallToolsBatch(ctx, []toolmesh.BatchCall{
//	    {ID: "search", Name: "github.search", Arguments: map[string]any{"query": "toolmesh"}},
//	    {ID: "weather", Name: "weather.current", Arguments: map[string]any{"city": "Berlin"}},
//	}, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for id, outcome := range batch.Outcomes {
//	    if !outcome.OK() {
//	        log.Printf("%s failed: %s", id, outcome.Error)
//	    }
//	}
//
// # Error Handling
//
// Failures split along a hard line. A *RemoteError answers exactly one call
// and leaves the session usable. A *TransportError or
// *ProtocolViolationError ends the session: every pending call fails, and
// later operations return ErrSessionClosed. Sessions are single-use; after
// a failure create a new client.
package toolmesh
