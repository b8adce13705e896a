package fetcher

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/services/youtube"
	"github.com/DanHUMassMed/sumtube/internal/stage"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// Fetcher downloads source content for a queued item into its work directory.
type Fetcher struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	source pipeline.ContentSource
}

// NewFetcher constructs the fetch stage handler using default dependencies.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Fetcher {
	client := youtube.NewClient(youtube.Config{
		APIKey:         cfg.YouTube.APIKey,
		BaseURL:        cfg.YouTube.BaseURL,
		Languages:      cfg.YouTube.Languages,
		TimeoutSeconds: cfg.YouTube.TimeoutSeconds,
	})
	return NewFetcherWithDependencies(cfg, store, logger, Source(client))
}

// NewFetcherWithDependencies allows injecting the content source (used in tests).
func NewFetcherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, source pipeline.ContentSource) *Fetcher {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "fetcher"))
	}
	return &Fetcher{store: store, cfg: cfg, logger: stageLogger, source: source}
}

// SetLogger updates the fetcher's logging destination while preserving component labeling.
func (f *Fetcher) SetLogger(logger *slog.Logger) {
	f.logger = logging.NewComponentLogger(logger, "fetcher")
}

func (f *Fetcher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	videoID := strings.TrimSpace(item.VideoID)
	if videoID == "" {
		resolved, err := youtube.ExtractVideoID(item.URL)
		if err != nil {
			return services.Wrap(
				services.ErrValidation,
				"fetching",
				"resolve video id",
				fmt.Sprintf("Could not determine a video ID from %q", item.URL),
				err,
			)
		}
		videoID = resolved
		item.VideoID = videoID
	}
	if strings.TrimSpace(item.WorkDir) == "" {
		item.WorkDir = workdir.ForVideo(f.cfg.Paths.OutputDir, videoID)
	}
	item.InitProgress("Fetching", "Preparing transcript download")
	logger.Info(
		"starting fetch preparation",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("work_dir", item.WorkDir),
	)
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	if strings.TrimSpace(item.VideoID) == "" || strings.TrimSpace(item.WorkDir) == "" {
		return services.Wrap(
			services.ErrValidation,
			"fetching",
			"validate inputs",
			"Queue item is missing a video ID or work directory; re-add the item with a valid URL",
			nil,
		)
	}

	dir, err := workdir.Open(item.WorkDir)
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"fetching",
			"open work directory",
			fmt.Sprintf("Could not create work directory %s", item.WorkDir),
			err,
		)
	}
	ck, err := checkpoint.Open(dir.CheckpointsDir())
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"fetching",
			"open checkpoint store",
			"Could not open the checkpoint store under the work directory",
			err,
		)
	}

	f.updateProgress(ctx, item, "Downloading transcript", 20)
	runner := pipeline.New(f.cfg, logger, f.source, nil)
	content, err := runner.Extract(ctx, dir, ck, item.VideoID)
	if err != nil {
		return err
	}

	if title := strings.TrimSpace(content.Title); title != "" {
		item.Title = title
	}
	item.SetProgressComplete("Fetching", fmt.Sprintf("Transcript ready (%d bytes)", len(content.Transcript)))
	logger.Info(
		"fetch completed",
		logging.String(logging.FieldVideoID, item.VideoID),
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.Int("transcript_bytes", len(content.Transcript)),
		logging.Bool("thumbnail", len(content.Thumbnail) > 0),
	)
	return nil
}

// HealthCheck verifies the fetch stage can resolve content and write work directories.
func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	const name = "fetcher"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(f.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	if f.source == nil {
		return stage.Unhealthy(name, "content source unavailable")
	}
	return stage.Healthy(name)
}

func (f *Fetcher) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	if f.store == nil {
		item.ProgressMessage = message
		item.ProgressPercent = percent
		return
	}
	logger := logging.WithContext(ctx, f.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := f.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist fetch progress", logging.Error(err))
		return
	}
	*item = copy
}
