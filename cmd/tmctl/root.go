package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/toolmesh/toolmesh-go"
)

// envConfig is populated from the environment; flags override it.
type envConfig struct {
	Endpoint string        `env:"TOOLMESH_ENDPOINT"`
	Token    string        `env:"TOOLMESH_TOKEN"`
	APIKey   string        `env:"TOOLMESH_API_KEY"`
	Timeout  time.Duration `env:"TOOLMESH_TIMEOUT,default=30s"`
}

// rootFlags carries the persistent flags shared by every subcommand.
type rootFlags struct {
	endpoint string
	token    string
	apiKey   string
	timeout  time.Duration
	verbose  bool
}

func newRootCommand() *cobra.Command {
	var env envConfig
	if err := envdecode.Decode(&env); err != nil {
		// All variables are optional; Decode only fails when none are set.
		env = envConfig{Timeout: 30 * time.Second}
	}

	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "tmctl",
		Short: "Command line client for toolmesh services",
		Long: `tmctl talks to a toolmesh tool-execution service over a persistent
WebSocket session: it lists and invokes remote tools, runs batched
invocations, and reads or writes the session context document.

The endpoint and credentials come from flags or the environment
(TOOLMESH_ENDPOINT, TOOLMESH_TOKEN, TOOLMESH_API_KEY).`,
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.endpoint, "endpoint", env.Endpoint, "service endpoint, e.g. wss://mesh.example.com/ws")
	pf.StringVar(&flags.token, "token", env.Token, "bearer token")
	pf.StringVar(&flags.apiKey, "api-key", env.APIKey, "API key credential")
	pf.DurationVar(&flags.timeout, "timeout", env.Timeout, "overall command timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newToolsCommand(flags))
	rootCmd.AddCommand(newContextCommand(flags))
	rootCmd.AddCommand(newPingCommand(flags))

	return rootCmd
}

// withSession connects a session for one command invocation and tears it
// down when the callback returns.
func withSession(flags *rootFlags, fn func(ctx context.Context, c toolmesh.Client) error) error {
	if flags.endpoint == "" {
		return fmt.Errorf("no endpoint: set --endpoint or TOOLMESH_ENDPOINT")
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	opts := []toolmesh.Option{
		toolmesh.WithClientInfo("tmctl", version),
	}

	if flags.token != "" {
		opts = append(opts, toolmesh.WithToken(flags.token))
	}

	if flags.apiKey != "" {
		opts = append(opts, toolmesh.WithAPIKey(flags.apiKey))
	}

	if flags.verbose {
		opts = append(opts, toolmesh.WithLogger(slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)))
	}

	return toolmesh.WithSession(ctx, flags.endpoint, func(c toolmesh.Client) error {
		return fn(ctx, c)
	}, opts...)
}

func newPingCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the service answers on the channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				start := time.Now()
				if err := c.Ping(ctx); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, protocol %s): ok in %s\n",
					flags.endpoint, c.ServerInfo().Name, c.ProtocolVersion(),
					time.Since(start).Round(time.Millisecond))

				return nil
			})
		},
	}
}

// printJSON writes v to the command's stdout, indented.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
