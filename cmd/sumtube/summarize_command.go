package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DanHUMassMed/sumtube/internal/fetcher"
	"github.com/DanHUMassMed/sumtube/internal/notifications"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/renderer"
	"github.com/DanHUMassMed/sumtube/internal/services/youtube"
	"github.com/DanHUMassMed/sumtube/internal/stageexec"
	"github.com/DanHUMassMed/sumtube/internal/summarizer"
)

func newSummarizeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <url>",
		Short: "Fetch, summarize, and render a single video",
		Long: `Summarize runs the full pipeline for one video URL in the foreground:
fetch the transcript, summarize it through the configured Ollama model, and
render the PDF report. Interrupted runs resume from their checkpoints, so
re-running the same URL never repeats finished work.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd, cmdCtx, args[0])
		},
	}
}

func runSummarize(cmd *cobra.Command, cmdCtx *commandContext, rawURL string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := cmdCtx.newLogger()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	item, err := resolveQueueItem(ctx, store, rawURL)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if item.Status == queue.StatusCompleted {
		fmt.Fprintf(out, "Already completed: %s\n", item.ReportPath)
		return nil
	}

	notifier := notifications.NewService(cfg)
	stages := []struct {
		name       string
		handler    stageexec.Handler
		start      queue.Status
		processing queue.Status
		done       queue.Status
	}{
		{"fetcher", fetcher.NewFetcher(cfg, store, logger), queue.StatusPending, queue.StatusFetching, queue.StatusFetched},
		{"summarizer", summarizer.NewSummarizer(cfg, store, logger), queue.StatusFetched, queue.StatusSummarizing, queue.StatusSummarized},
		{"renderer", renderer.NewRenderer(cfg, store, logger), queue.StatusSummarized, queue.StatusRendering, queue.StatusCompleted},
	}

	for _, stg := range stages {
		if item.Status != stg.start {
			continue
		}
		if err := stageexec.Run(ctx, stageexec.Options{
			Logger:     logger,
			Store:      store,
			Notifier:   notifier,
			Handler:    stg.handler,
			StageName:  stg.name,
			Processing: stg.processing,
			Done:       stg.done,
			Item:       item,
		}); err != nil {
			return fmt.Errorf("%s: %w", stg.name, err)
		}
	}

	if item.Status != queue.StatusCompleted {
		return fmt.Errorf("pipeline stopped at status %s: %s", item.Status, item.ErrorMessage)
	}
	fmt.Fprintf(out, "Report written to %s\n", item.ReportPath)
	return nil
}

// resolveQueueItem finds or creates the queue item for a URL. Failed and
// review items are reset so the one-shot run retries them from their last
// durable status.
func resolveQueueItem(ctx context.Context, store *queue.Store, rawURL string) (*queue.Item, error) {
	trimmed := strings.TrimSpace(rawURL)
	videoID, err := youtube.ExtractVideoID(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve video id: %w", err)
	}

	item, err := store.FindByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return store.Add(ctx, trimmed, videoID)
	}
	if item.Status == queue.StatusFailed || item.Status == queue.StatusReview {
		if _, err := store.RetryFailed(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("reset failed item: %w", err)
		}
		return store.GetByID(ctx, item.ID)
	}
	if item.IsProcessing() {
		if _, err := store.ResetStuckProcessing(ctx); err != nil {
			return nil, fmt.Errorf("reset interrupted item: %w", err)
		}
		return store.GetByID(ctx, item.ID)
	}
	return item, nil
}
