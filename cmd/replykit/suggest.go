package main

import (
	"context"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/client"
)

// mePrefix marks a suggest argument as a message the user sent.
const mePrefix = "me:"

func suggestCmd() *cobra.Command {
	var additional string
	cmd := &cobra.Command{
		Use:   "suggest <identifier> <message>...",
		Short: "Draft replies for a transcript given on the command line",
		Long: `Draft replies for a transcript given on the command line, oldest first.
Messages prefixed with "me:" are treated as sent by you.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := assist.SuggestRequest{Identifier: args[0], AdditionalContext: additional}
			for _, a := range args[1:] {
				msg := assist.RecentMessage{Text: a}
				if rest, ok := strings.CutPrefix(a, mePrefix); ok {
					msg = assist.RecentMessage{Text: strings.TrimSpace(rest), IsFromMe: true}
				}
				req.Messages = append(req.Messages, msg)
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.GenerateSuggestions(ctx, req)
				if err != nil {
					return err
				}
				return renderSuggestions(cmd, resp)
			})
		},
	}
	cmd.Flags().StringVarP(&additional, "context", "c", "", "extra instructions for this request")
	return cmd
}

func suggestThreadCmd() *cobra.Command {
	var additional string
	cmd := &cobra.Command{
		Use:   "suggest-thread <identifier>",
		Short: "Draft replies for the latest messages of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.SuggestForThread(ctx, args[0], additional)
				if err != nil {
					return err
				}
				return renderSuggestions(cmd, resp)
			})
		},
	}
	cmd.Flags().StringVarP(&additional, "context", "c", "", "extra instructions for this request")
	return cmd
}

func renderSuggestions(cmd *cobra.Command, resp *assist.Suggestions) error {
	return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
		for i, s := range resp.Suggestions {
			printf(tw, "%d.\t%s\n", i+1, s)
		}
	})
}

func styleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "style <identifier>",
		Short: "Analyze how a contact writes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.AnalyzeStyle(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "formality:\t%s\n", resp.Formality)
					printf(tw, "average length:\t%d characters\n", resp.AvgMessageLength)
					printf(tw, "emoji per message:\t%.2f\n", resp.EmojiFrequency)
					printf(tw, "analysis:\t%s\n", resp.Analysis)
				})
			})
		},
	}
}
