package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/client"
	"github.com/matheus3301/replykit/internal/store"
)

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage what replykit knows about each contact",
	}
	cmd.AddCommand(contextGetCmd(), contextListCmd(), contextSetCmd(), contextBackgroundCmd(), contextHistoryCmd())
	return cmd
}

func contextGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Show a contact and its saved context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.GetContactWithContext(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					if resp.Contact != nil {
						printf(tw, "identifier:\t%s\n", resp.Contact.Identifier)
						printf(tw, "chat name:\t%s\n", orDash(resp.Contact.DisplayName))
					} else {
						printf(tw, "identifier:\t%s (no messages)\n", args[0])
					}
					if resp.Context == nil {
						printf(tw, "context:\tnone saved\n")
						return
					}
					writeContext(tw, resp.Context)
				})
			})
		},
	}
}

func writeContext(tw *tabwriter.Writer, cc *store.ContactContext) {
	printf(tw, "name:\t%s\n", orDash(cc.Name))
	printf(tw, "relationship:\t%s\n", orDash(cc.RelationshipType))
	printf(tw, "formality:\t%s\n", orDash(string(cc.Formality)))
	printf(tw, "style:\t%s\n", orDash(cc.CommunicationStyle))
	printf(tw, "background:\t%s\n", orDash(cc.BackgroundContext))
	printf(tw, "updated:\t%s\n", ago(cc.UpdatedAt))
}

func contextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved contact contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListContactContexts(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "IDENTIFIER\tNAME\tRELATIONSHIP\tFORMALITY\tUPDATED\n")
					for _, cc := range resp.Contexts {
						printf(tw, "%s\t%s\t%s\t%s\t%s\n", cc.PhoneNumber, orDash(cc.Name),
							orDash(cc.RelationshipType), orDash(string(cc.Formality)), ago(cc.UpdatedAt))
					}
				})
			})
		},
	}
}

func contextSetCmd() *cobra.Command {
	var name, relationship, formality, style, background string
	cmd := &cobra.Command{
		Use:   "set <identifier>",
		Short: "Create or update a contact context; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := store.ContactContextUpdate{PhoneNumber: args[0]}
			flags := cmd.Flags()
			pick := func(flag string, v string) *string {
				if flags.Changed(flag) {
					return &v
				}
				return nil
			}
			u.Name = pick("name", name)
			u.RelationshipType = pick("relationship", relationship)
			u.CommunicationStyle = pick("style", style)
			u.BackgroundContext = pick("background", background)
			if flags.Changed("formality") {
				f, err := store.ParseFormality(formality)
				if err != nil {
					return err
				}
				u.Formality = &f
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.SaveContactContext(ctx, u)
				if err != nil {
					return err
				}
				return renderContext(cmd, resp)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&relationship, "relationship", "", "relationship, e.g. friend or coworker")
	cmd.Flags().StringVar(&formality, "formality", "", "casual, neutral or formal")
	cmd.Flags().StringVar(&style, "style", "", "how this contact writes")
	cmd.Flags().StringVar(&background, "background", "", "free-form background")
	return cmd
}

func contextBackgroundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "background <identifier> <text>...",
		Short: "Replace the background of an existing context and record it in history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.UpdateBackground(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return renderContext(cmd, resp)
			})
		},
	}
}

func renderContext(cmd *cobra.Command, resp *api.ContactContextResponse) error {
	return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
		if resp.Context == nil {
			printf(tw, "no context saved\n")
			return
		}
		printf(tw, "identifier:\t%s\n", resp.Context.PhoneNumber)
		writeContext(tw, resp.Context)
	})
}

func contextHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <identifier>",
		Short: "Show previous background texts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.GetContextHistory(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "WHEN\tBACKGROUND\n")
					for _, h := range resp.History {
						printf(tw, "%s\t%s\n", ago(h.CreatedAt), oneLine(h.ContextText, 100))
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage your own current situation used when drafting replies",
	}
	cmd.AddCommand(statusListCmd(), statusAddCmd(), statusRemoveCmd())
	return cmd
}

func statusListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				var (
					resp *api.UserContextResponse
					err  error
				)
				if all {
					resp, err = c.ListAllUserContext(ctx)
				} else {
					resp, err = c.ListUserContext(ctx)
				}
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "ID\tTYPE\tCONTENT\tENDS\n")
					for _, e := range resp.Entries {
						ends := "-"
						if e.EndAt != nil {
							ends = ago(*e.EndAt)
						}
						printf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Type, oneLine(e.Content, 80), ends)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include expired entries")
	return cmd
}

func statusAddCmd() *cobra.Command {
	var (
		until time.Duration
		end   string
	)
	cmd := &cobra.Command{
		Use:   "add <type> <content>...",
		Short: "Add an entry, optionally expiring",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := store.NewUserContext{Type: args[0], Content: strings.Join(args[1:], " ")}
			now := time.Now()
			in.StartAt = &now
			switch {
			case end != "":
				t, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("parse --end: %w", err)
				}
				in.EndAt = &t
			case until > 0:
				t := now.Add(until)
				in.EndAt = &t
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.AddUserContext(ctx, in)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "added entry %d\n", resp.Entry.ID)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&until, "for", 0, "expire after this duration, e.g. 3h")
	cmd.Flags().StringVar(&end, "end", "", "expire at this RFC 3339 time")
	return cmd
}

func statusRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.DeleteUserContext(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(tw *tabwriter.Writer) {
					printf(tw, "removed entry %d\n", id)
				})
			})
		},
	}
}
