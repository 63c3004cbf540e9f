package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/client"
)

func directoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Inspect the contact name cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the cache state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(ctx context.Context, c *client.Client) error {
					resp, err := c.DirectoryStatus(ctx)
					if err != nil {
						return err
					}
					return renderDirectory(cmd, resp)
				})
			},
		},
		&cobra.Command{
			Use:   "rebuild",
			Short: "Rescan the Contacts databases",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(ctx context.Context, c *client.Client) error {
					resp, err := c.RebuildDirectory(ctx)
					if err != nil {
						return err
					}
					return renderDirectory(cmd, resp)
				})
			},
		},
	)
	return cmd
}

func renderDirectory(cmd *cobra.Command, resp *api.DirectoryStatusResponse) error {
	return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
		printf(tw, "state:\t%s\n", resp.State)
		printf(tw, "entries:\t%s\n", humanize.Comma(int64(resp.Entries)))
	})
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [kind-prefix]",
		Short: "Stream daemon events until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			c, err := client.New(socketPath)
			if err != nil {
				return fmt.Errorf("cannot connect to daemon at %s: %w", socketPath, err)
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = c.WatchEvents(ctx, prefix, func(evt api.EventMessage) error {
				if outputFmt != "table" {
					return render(out, evt, nil)
				}
				payload, _ := json.Marshal(evt.Payload)
				printf(out, "%s  %-22s %s\n", evt.OccurredAt.Local().Format("15:04:05"), evt.Kind, payload)
				return nil
			})
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		},
	}
}
