package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/DanHUMassMed/sumtube/internal/preflight"
	"github.com/DanHUMassMed/sumtube/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service readiness and queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			checks := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				state := "ok"
				if !check.Passed {
					state = "failed"
				}
				checkRows = append(checkRows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "State", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			statRows := make([][]string, 0, len(stats))
			for _, status := range queue.AllStatuses() {
				if count := stats[status]; count > 0 {
					statRows = append(statRows, []string{string(status), strconv.Itoa(count)})
				}
			}
			if len(statRows) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderCountTable("Status", statRows))
			return nil
		},
	}
}
