package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"castkeep/internal/logging"
	"castkeep/internal/logs"
)

func newLogCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var subscription int64

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the castkeep log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := logs.Options{Lines: lines, Follow: follow}
			if subscription > 0 {
				opts.Match = logs.SubscriptionFilter(subscription)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			return logs.Tail(runCtx, path, opts, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of existing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().Int64Var(&subscription, "subscription", 0, "Only show lines for this subscription id")
	return cmd
}
