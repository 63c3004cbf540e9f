package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/replykit/internal/client"
	"github.com/matheus3301/replykit/internal/paths"
)

var (
	socketPath string
	outputFmt  string
	timeout    time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "replykit",
		Short:         "Browse iMessage threads and draft replies through replykitd",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFmt {
			case "table", "json", "yaml":
				return nil
			}
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", outputFmt)
		},
	}

	root.PersistentFlags().StringVar(&socketPath, "socket", paths.SocketPath(), "daemon socket path")
	root.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json or yaml")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")

	root.AddCommand(
		contactsCmd(),
		searchCmd(),
		threadsCmd(),
		threadCmd(),
		historyCmd(),
		contextCmd(),
		statusCmd(),
		suggestCmd(),
		suggestThreadCmd(),
		styleCmd(),
		directoryCmd(),
		watchCmd(),
	)
	return root
}

// withClient connects to the daemon and runs fn under the request timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.New(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon at %s: %w", socketPath, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, c)
}
