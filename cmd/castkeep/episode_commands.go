package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"castkeep/internal/logging"
	"castkeep/internal/store"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var long bool

	cmd := &cobra.Command{
		Use:     "episodes [castid...|all]",
		Aliases: []string{"lsepisodes"},
		Short:   "List episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			var want store.EpisodeStatus
			if statusFilter != "" {
				if want, err = store.ParseEpisodeStatus(statusFilter); err != nil {
					return err
				}
			}
			return ctx.withStore(cmd, func(s *session) error {
				subs, err := s.store.ListSubscriptions(s.ctx, ids)
				if err != nil {
					return err
				}
				columns := []column{
					{title: "Cast", numeric: true},
					{title: "Ep", numeric: true},
					{title: "Status"},
					{title: "Title"},
				}
				if long {
					columns = append(columns, column{title: "URL"})
				}
				var rows [][]string
				for _, sub := range subs {
					episodes, err := s.store.ListEpisodes(s.ctx, sub.ID, nil)
					if err != nil {
						return err
					}
					for _, ep := range episodes {
						if want != "" && ep.Status != want {
							continue
						}
						row := []string{formatID(sub.ID), formatID(ep.Seq), string(ep.Status), ep.Title}
						if long {
							row = append(row, ep.EnclosureURL)
						}
						rows = append(rows, row)
					}
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No episodes")
					return nil
				}
				fmt.Fprint(out, renderTable(columns, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show episodes with this status")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Include enclosure URLs")
	return cmd
}

func newCatchupCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "catchup [castid...|all]",
		Short: "Skip all but the newest undownloaded episodes",
		Long: "Marks every Pending or Error episode Skipped except the newest -n episodes " +
			"of each subscription, so they are never downloaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return errors.New("-n must not be negative")
			}
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				subs, err := s.store.ListSubscriptions(s.ctx, ids)
				if err != nil {
					return err
				}
				skipped := 0
				for _, sub := range subs {
					n, err := catchupSubscription(s, sub, keep)
					skipped += n
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d episode(s) in %d podcast(s)\n", skipped, len(subs))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&keep, "num", "n", 1, "Number of newest episodes to leave untouched")
	return cmd
}

func catchupSubscription(s *session, sub store.Subscription, keep int) (int, error) {
	episodes, err := s.store.ListEpisodes(s.ctx, sub.ID, nil)
	if err != nil {
		return 0, err
	}
	if keep >= len(episodes) {
		return 0, nil
	}
	skipped := 0
	for _, ep := range episodes[:len(episodes)-keep] {
		if ep.Status != store.StatusPending && ep.Status != store.StatusError {
			continue
		}
		ep.Status = store.StatusSkipped
		if err := s.store.UpdateEpisode(s.ctx, ep); err != nil {
			return skipped, fmt.Errorf("skip episode %d of subscription %d: %w", ep.Seq, sub.ID, err)
		}
		skipped++
	}
	s.logger.Info("caught up subscription",
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.Int("skipped", skipped),
	)
	return skipped, nil
}

func newSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setstatus <castid> <status> <epid...|all>",
		Short: "Set the status of episodes and reset their failure counters",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			castID, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := store.ParseEpisodeStatus(args[1])
			if err != nil {
				return err
			}
			seqs, err := parseSelection(args[2:])
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				sub, err := s.store.GetSubscription(s.ctx, castID)
				if err != nil {
					return err
				}
				if sub == nil {
					return fmt.Errorf("subscription %d not found", castID)
				}
				episodes, err := s.store.ListEpisodes(s.ctx, castID, seqs)
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					return fmt.Errorf("no matching episodes in subscription %d", castID)
				}
				for _, ep := range episodes {
					ep.Status = status
					ep.Failures = 0
					ep.FirstAttempt = nil
					if err := s.store.UpdateEpisode(s.ctx, ep); err != nil {
						return fmt.Errorf("update episode %d: %w", ep.Seq, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d episode(s) set to %s\n", len(episodes), status)
				return nil
			})
		},
	}
}
