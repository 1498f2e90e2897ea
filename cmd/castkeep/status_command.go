package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"castkeep/internal/preflight"
	"castkeep/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkFeeds bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, external commands, and the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(s *session) error {
				out := cmd.OutOrStdout()
				checkColumns := []column{{title: "Check"}, {title: "OK"}, {title: "Detail"}}

				results := preflight.RunAll(s.ctx, s.cfg)
				results = append(results, preflight.CheckSchema(s.ctx, s.store))
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
				}
				fmt.Fprint(out, renderTable(checkColumns, rows))

				commands := preflight.CheckCommands(s.cfg)
				if len(commands) > 0 {
					rows = rows[:0]
					for _, c := range commands {
						detail := c.Detail
						if detail == "" {
							detail = c.Description
						}
						rows = append(rows, []string{c.Name + " (" + c.Command + ")", yesNo(c.Available), detail})
					}
					fmt.Fprint(out, renderTable([]column{{title: "Command"}, {title: "Found"}, {title: "Detail"}}, rows))
				}

				files, err := staging.ListFiles(s.cfg.Paths.ScratchDir)
				if err != nil {
					return fmt.Errorf("list scratch files: %w", err)
				}
				var partial int64
				for _, f := range files {
					partial += f.Size
				}
				fmt.Fprintf(out, "Partial downloads: %d (%d bytes)\n", len(files), partial)

				if checkFeeds {
					subs, err := s.store.ListSubscriptions(s.ctx, nil)
					if err != nil {
						return err
					}
					client := s.httpClient()
					rows = rows[:0]
					for _, sub := range subs {
						if !sub.Enabled() {
							continue
						}
						r := preflight.CheckFeed(s.ctx, client, formatID(sub.ID), sub.SourceURL)
						rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
					}
					if len(rows) > 0 {
						fmt.Fprint(out, renderTable([]column{{title: "Feed", numeric: true}, {title: "OK"}, {title: "Detail"}}, rows))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&checkFeeds, "check-feeds", false, "Also request every enabled feed once")
	return cmd
}
