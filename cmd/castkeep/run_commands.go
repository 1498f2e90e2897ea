package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"castkeep/internal/download"
	"castkeep/internal/preflight"
	"castkeep/internal/reconcile"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update [castid...|all]",
		Short: "Fetch feeds and record new episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				return runUpdate(s, cmd.OutOrStdout(), ids)
			})
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download [castid...|all]",
		Short: "Download pending episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				return runDownload(s, cmd.OutOrStdout(), ids)
			})
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [castid...|all]",
		Short: "Update feeds, then download pending episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseSelection(args)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(s *session) error {
				if err := runUpdate(s, cmd.OutOrStdout(), ids); err != nil {
					return err
				}
				return runDownload(s, cmd.OutOrStdout(), ids)
			})
		},
	}
}

func runUpdate(s *session, out io.Writer, ids []int64) error {
	subs, err := s.store.ListSubscriptions(s.ctx, ids)
	if err != nil {
		return err
	}
	reconciler := reconcile.New(s.store, s.feedFetcher(), s.cfg, s.logger)
	outcomes, runErr := reconciler.Run(s.ctx, subs)

	titles := make(map[int64]string, len(subs))
	for _, sub := range subs {
		titles[sub.ID] = sub.Title
	}
	// Titles may have been filled in by this pass.
	if refreshed, err := s.store.ListSubscriptions(s.ctx, ids); err == nil {
		for _, sub := range refreshed {
			titles[sub.ID] = sub.Title
		}
	}

	if len(outcomes) > 0 {
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{
				formatID(o.SubscriptionID),
				titles[o.SubscriptionID],
				fmt.Sprint(o.Inserted),
				fmt.Sprint(o.Updated),
				describeOutcome(o),
			})
		}
		fmt.Fprint(out, renderTable([]column{
			{title: "ID", numeric: true},
			{title: "Title"},
			{title: "New", numeric: true},
			{title: "Updated", numeric: true},
			{title: "Result"},
		}, rows))
	} else if runErr == nil {
		fmt.Fprintln(out, "No enabled subscriptions to update")
	}
	return runErr
}

func describeOutcome(o reconcile.Outcome) string {
	var parts []string
	switch {
	case o.Err != nil:
		parts = append(parts, "error: "+o.Err.Error())
	case o.Disabled:
		parts = append(parts, "failed, disabled")
	case o.Failed:
		parts = append(parts, "failed")
	case o.NotModified:
		parts = append(parts, "not modified")
	default:
		parts = append(parts, "ok")
	}
	if o.Ambiguous > 0 {
		parts = append(parts, fmt.Sprintf("%d ambiguous", o.Ambiguous))
	}
	return strings.Join(parts, ", ")
}

func runDownload(s *session, out io.Writer, ids []int64) error {
	if failed := preflight.Failed(preflight.RunAll(s.ctx, s.cfg)); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, r := range failed {
			msgs = append(msgs, r.Name+": "+r.Detail)
		}
		return errors.New("preflight failed: " + strings.Join(msgs, "; "))
	}

	subs, err := s.store.ListSubscriptions(s.ctx, ids)
	if err != nil {
		return err
	}
	pipeline := download.New(
		s.store,
		download.NewHTTPFetcher(s.httpClient()),
		download.ShellRunner{Timeout: s.cfg.CommandTimeout()},
		s.cfg,
		s.logger,
	)
	summary, runErr := pipeline.Run(s.ctx, subs)

	fmt.Fprintf(out, "Downloaded %d of %d episode(s)", summary.Downloaded, summary.Considered)
	if summary.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", summary.Failed)
	}
	if summary.Disabled > 0 {
		fmt.Fprintf(out, ", %d marked Error", summary.Disabled)
	}
	if summary.Errored > 0 {
		fmt.Fprintf(out, ", %d aborted (see log)", summary.Errored)
	}
	fmt.Fprintln(out)
	return runErr
}
