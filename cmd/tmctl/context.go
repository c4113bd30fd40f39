package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolmesh/toolmesh-go"
)

func newContextCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Read and write the session context document",
	}

	cmd.AddCommand(newContextGetCommand(flags))
	cmd.AddCommand(newContextSetCommand(flags))

	return cmd
}

func newContextGetCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the session context document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				doc, err := c.GetContext(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd, doc)
			})
		},
	}
}

func newContextSetCommand(flags *rootFlags) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "set <json>",
		Short: "Write the session context document",
		Long: `Write the session context document. By default the given keys are
merged into the existing document; --replace swaps the whole document.

Example:
  tmctl context set '{"tenant": "acme", "tier": "gold"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc toolmesh.ContextDocument
			if err := json.Unmarshal([]byte(args[0]), &doc); err != nil {
				return fmt.Errorf("parse context document: %w", err)
			}

			return withSession(flags, func(ctx context.Context, c toolmesh.Client) error {
				if err := c.UpdateContext(ctx, doc, !replace); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "context updated")

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace the document instead of merging")

	return cmd
}
