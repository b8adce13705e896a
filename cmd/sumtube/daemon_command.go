package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/daemon"
	"github.com/DanHUMassMed/sumtube/internal/fetcher"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/renderer"
	"github.com/DanHUMassMed/sumtube/internal/summarizer"
	"github.com/DanHUMassMed/sumtube/internal/workflow"
)

func newDaemonCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sumtube daemon in the foreground",
		Long: `Daemon polls the queue and processes items through the fetch, summarize,
and render stages until interrupted. Only one daemon instance can run per
log directory; a second invocation exits immediately.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonProcess(cmd, cmdCtx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, cmdCtx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := cmdCtx.newLogger()
	if err != nil {
		return err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	manager := workflow.NewManager(cfg, store, logger)
	registerStages(manager, cfg, store, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("sumtube daemon shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	if mgr == nil || cfg == nil {
		return
	}
	mgr.ConfigureStages(workflow.StageSet{
		Fetcher:    fetcher.NewFetcher(cfg, store, logger),
		Summarizer: summarizer.NewSummarizer(cfg, store, logger),
		Renderer:   renderer.NewRenderer(cfg, store, logger),
	})
}
