package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"castkeep/internal/feed"
	"castkeep/internal/logging"
	"castkeep/internal/store"
)

var subscriptionColumns = []column{
	{title: "ID", numeric: true},
	{title: "Pending", numeric: true},
	{title: "Total", numeric: true},
	{title: "State"},
	{title: "Title"},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var discover bool

	cmd := &cobra.Command{
		Use:   "add <feed-url>...",
		Short: "Subscribe to one or more feeds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd, func(s *session) error {
				fetcher := s.feedFetcher()
				var rows [][]string
				for _, arg := range args {
					feedURL := strings.TrimSpace(arg)
					if discover {
						found, err := feed.Discover(s.ctx, s.httpClient(), feedURL)
						if err != nil {
							return fmt.Errorf("discover feed at %s: %w", feedURL, err)
						}
						feedURL = found
					}
					sub, err := s.store.AddSubscription(s.ctx, feedURL)
					if errors.Is(err, store.ErrDuplicateSubscription) {
						return fmt.Errorf("%s: %w", feedURL, err)
					}
					if err != nil {
						return err
					}
					// A cached ETag from an earlier subscription would hide the
					// current feed contents.
					if err := fetcher.Forget(feedURL); err != nil {
						s.logger.Warn("failed to clear feed cache", logging.String("url", feedURL), logging.Error(err))
					}
					rows = append(rows, []string{formatID(sub.ID), sub.SourceURL})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Podcast(s) added:")
				fmt.Fprint(out, renderTable([]column{{title: "ID", numeric: true}, {title: "URL"}}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&discover, "discover", false, "Treat each URL as a web page and follow its feed link")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "rm <castid>...",
		Short: "Remove subscriptions and their episodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				subs, err := s.store.ListSubscriptions(s.ctx, ids)
				if err != nil {
					return err
				}
				if len(subs) == 0 {
					return errors.New("no subscriptions match the given ids; list them with `castkeep ls`")
				}

				out := cmd.OutOrStdout()
				rows, err := subscriptionRows(s, subs)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Will remove the following podcasts:")
				fmt.Fprint(out, renderTable(subscriptionColumns, rows))

				if !assumeYes {
					confirmed, err := confirm(cmd.InOrStdin(), out, len(subs))
					if err != nil {
						return err
					}
					if !confirmed {
						fmt.Fprintln(out, "Remove aborted")
						return nil
					}
				}

				fetcher := s.feedFetcher()
				for _, sub := range subs {
					if err := s.store.RemoveSubscription(s.ctx, sub.ID); err != nil {
						return fmt.Errorf("remove subscription %d: %w", sub.ID, err)
					}
					if err := fetcher.Forget(sub.SourceURL); err != nil {
						s.logger.Warn("failed to clear feed cache", logging.String("url", sub.SourceURL), logging.Error(err))
					}
				}
				if err := s.store.Vacuum(s.ctx); err != nil {
					s.logger.Warn("vacuum failed", logging.Error(err), logging.String(logging.FieldImpact, "database file keeps its size"))
				}
				fmt.Fprintf(out, "Removed %d podcast(s)\n", len(subs))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Remove without asking for confirmation")
	return cmd
}

// confirm asks the user to type YES. Without a terminal on stdin there is no
// one to ask, so the caller must pass --yes.
func confirm(in io.Reader, out io.Writer, count int) (bool, error) {
	file, ok := in.(*os.File)
	if !ok || !(isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) {
		return false, errors.New("refusing to remove without confirmation; stdin is not a terminal, rerun with --yes")
	}
	fmt.Fprintf(out, "\nType YES to remove these %d podcast(s): ", count)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(line) == "YES", nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:     "ls [castid...|all]",
		Aliases: []string{"lscasts"},
		Short:   "List subscriptions with pending and total episode counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(s *session) error {
				subs, err := s.store.ListSubscriptions(s.ctx, ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(subs) == 0 {
					fmt.Fprintln(out, "No subscriptions")
					return nil
				}
				rows, err := subscriptionRows(s, subs)
				if err != nil {
					return err
				}
				columns := subscriptionColumns
				if long {
					columns = append(columns[:len(columns):len(columns)], column{title: "URL"})
					for i, sub := range subs {
						rows[i] = append(rows[i], sub.SourceURL)
					}
				}
				fmt.Fprint(out, renderTable(columns, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Include feed URLs")
	return cmd
}

func subscriptionRows(s *session, subs []store.Subscription) ([][]string, error) {
	counts, err := s.store.CountEpisodes(s.ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		c := counts[sub.ID]
		rows = append(rows, []string{
			formatID(sub.ID),
			fmt.Sprint(c.Pending),
			fmt.Sprint(c.Total),
			sub.State.String(),
			sub.Title,
		})
	}
	return rows, nil
}

func newSetTitleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "settitle <castid> <title>",
		Short: "Set the stored title of a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			title := strings.TrimSpace(args[1])
			if title == "" {
				return errors.New("title must not be empty")
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				sub, err := s.store.GetSubscription(s.ctx, id)
				if err != nil {
					return err
				}
				if sub == nil {
					return fmt.Errorf("subscription %d not found", id)
				}
				sub.Title = title
				if err := s.store.UpdateSubscription(s.ctx, *sub); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscription %d is now %q\n", id, title)
				return nil
			})
		},
	}
}

func newEnableDisableCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStateCommand(ctx, "enable", "Resume updating and downloading subscriptions", store.Enabled),
		newStateCommand(ctx, "disable", "Stop updating and downloading subscriptions", store.UserDisabled),
	}
}

func newStateCommand(ctx *commandContext, name, short string, state store.EnabledState) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <castid>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				subs, err := s.store.ListSubscriptions(s.ctx, ids)
				if err != nil {
					return err
				}
				for _, sub := range subs {
					sub.State = state
					if state == store.Enabled {
						sub.Failures = 0
						sub.LastAttempt = nil
					}
					if err := s.store.UpdateSubscription(s.ctx, sub); err != nil {
						return fmt.Errorf("%s subscription %d: %w", name, sub.ID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d subscription(s) set to %s\n", len(subs), state)
				return nil
			})
		},
	}
}
