package main

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/client"
)

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List every identifier with a message history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListContacts(ctx)
				if err != nil {
					return err
				}
				return renderContacts(cmd, resp)
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find contacts by identifier or chat name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.SearchContacts(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return renderContacts(cmd, resp)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results")
	return cmd
}

func renderContacts(cmd *cobra.Command, resp *api.ContactsResponse) error {
	return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
		printf(tw, "ID\tIDENTIFIER\tNAME\n")
		for _, ct := range resp.Contacts {
			printf(tw, "%d\t%s\t%s\n", ct.ID, ct.Identifier, orDash(ct.DisplayName))
		}
	})
}

func threadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListThreads(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "NAME\tIDENTIFIER\tWHEN\tUNREAD\tLAST MESSAGE\n")
					for _, th := range resp.Threads {
						last := ""
						if th.LastMessage != nil {
							last = *th.LastMessage
						}
						if th.IsFromMe {
							last = "You: " + last
						}
						printf(tw, "%s\t%s\t%s\t%s\t%s\n",
							th.DisplayName, th.Identifier, ago(th.Time()), yesNo(th.Unread), oneLine(last, 60))
					}
				})
			})
		},
	}
}

func threadCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "thread <identifier>",
		Short: "Show the latest messages exchanged with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.GetThread(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return renderMessages(cmd, resp)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum messages")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <identifier>",
		Short: "Show every plain-text message exchanged with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.GetHistory(ctx, args[0])
				if err != nil {
					return err
				}
				return renderMessages(cmd, resp)
			})
		},
	}
}

func renderMessages(cmd *cobra.Command, resp *api.MessagesResponse) error {
	return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
		printf(tw, "WHEN\tFROM\tTEXT\n")
		for _, m := range resp.Messages {
			printf(tw, "%s\t%s\t%s\n", m.Time().Local().Format("2006-01-02 15:04"), sender(m), oneLine(orDash(m.Body()), 100))
		}
	})
}

func sender(m chatdb.Message) string {
	if m.IsFromMe {
		return "me"
	}
	return m.Identifier
}
