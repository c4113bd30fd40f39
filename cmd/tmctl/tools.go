package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toolmesh/toolmesh-go"
)

func newToolsCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List, inspect, and invoke remote tools",
	}

	cmd.AddCommand(newToolsListCommand(flags))
	cmd.AddCommand(newToolsDescribeCommand(flags))
	cmd.AddCommand(newToolsCallCommand(flags))
	cmd.AddCommand(newToolsBatchCommand(flags))

	return cmd
}

func newToolsListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools the service exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				tools, err := c.ListTools(ctx)
				if err != nil {
					return err
				}

				if len(tools) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no tools available")

					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tDESCRIPTION")

				for _, tool := range tools {
					fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
				}

				return w.Flush()
			})
		},
	}
}

func newToolsDescribeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <tool>",
		Short: "Show a tool's description and input schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				tools, err := c.ListTools(ctx)
				if err != nil {
					return err
				}

				for _, tool := range tools {
					if tool.Name != args[0] {
						continue
					}

					fmt.Fprintf(cmd.OutOrStdout(), "Name: %s\n", tool.Name)

					if tool.Description != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "Description: %s\n", tool.Description)
					}

					schema, err := tool.Schema()
					if err != nil {
						return err
					}

					if schema == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "Schema: none")

						return nil
					}

					fmt.Fprintln(cmd.OutOrStdout(), "Schema:")

					return printJSON(cmd, schema)
				}

				return fmt.Errorf("tool %q not found", args[0])
			})
		},
	}
}

func newToolsCallCommand(flags *rootFlags) *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print its result",
		Long: `Invoke one tool and print its raw JSON result.

Example:
  tmctl tools call github.search --args '{"query": "toolmesh"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments, err := parseArguments(argsJSON)
			if err != nil {
				return err
			}

			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				result, err := c.CallTool(ctx, args[0], arguments)
				if err != nil {
					return err
				}

				return printJSON(cmd, json.RawMessage(result))
			})
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")

	return cmd
}

func newToolsBatchCommand(flags *rootFlags) *cobra.Command {
	var (
		file     string
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run several tool calls as one request",
		Long: `Run several tool calls as one request. The batch file is a JSON array
of calls; per-call failures are reported per id without failing the batch.

Example batch file:
  [
    {"id": "search", "name": "github.search", "arguments": {"query": "toolmesh"}},
    {"id": "weather", "name": "weather.current", "arguments": {"city": "Berlin"}}
  ]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read batch file: %w", err)
			}

			var calls []toolmesh.BatchCall
			if err := json.Unmarshal(data, &calls); err != nil {
				return fmt.Errorf("parse batch file: %w", err)
			}

			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				br, err := c.CallToolsBatch(ctx, calls, parallel)
				if err != nil {
					return err
				}

				for id, outcome := range br.Outcomes {
					if outcome.OK() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: ok %s\n", id, outcome.Result)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: error %s\n", id, outcome.Error)
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded, %d failed in %s\n",
					br.SuccessCount, br.ErrorCount, br.Duration)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the batch calls (required)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "let the server run the calls concurrently")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// parseArguments decodes the --args JSON object. Empty means no arguments.
func parseArguments(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return nil, nil
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &arguments); err != nil {
		return nil, fmt.Errorf("parse --args: %w", err)
	}

	return arguments, nil
}
