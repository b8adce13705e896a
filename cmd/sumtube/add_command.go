package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DanHUMassMed/sumtube/internal/services/youtube"
)

func newAddCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>...",
		Short: "Add video URLs to the processing queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := cmdCtx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, arg := range args {
				trimmed := strings.TrimSpace(arg)
				videoID, err := youtube.ExtractVideoID(trimmed)
				if err != nil {
					return fmt.Errorf("resolve video id for %q: %w", arg, err)
				}
				existing, err := store.FindByVideoID(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				if existing != nil {
					fmt.Fprintf(out, "Already queued as item %d: %s\n", existing.ID, videoID)
					continue
				}
				item, err := store.Add(cmd.Context(), trimmed, videoID)
				if err != nil {
					return fmt.Errorf("enqueue %q: %w", arg, err)
				}
				fmt.Fprintf(out, "Queued item %d: %s\n", item.ID, videoID)
			}
			return nil
		},
	}
}
