package renderer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/stage"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// Renderer assembles drafted sections and writes the Markdown and PDF report.
type Renderer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewRenderer constructs the render stage handler.
func NewRenderer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Renderer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "renderer"))
	}
	return &Renderer{store: store, cfg: cfg, logger: stageLogger}
}

// SetLogger updates the renderer's logging destination while preserving component labeling.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, "renderer")
}

func (r *Renderer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	if strings.TrimSpace(item.VideoID) == "" || strings.TrimSpace(item.WorkDir) == "" {
		return services.Wrap(
			services.ErrValidation,
			"rendering",
			"validate inputs",
			"Queue item has no summarized content; run the earlier stages before rendering",
			nil,
		)
	}
	item.InitProgress("Rendering", "Preparing report rendering")
	logger.Info(
		"starting render preparation",
		logging.String(logging.FieldVideoID, item.VideoID),
		logging.String("work_dir", item.WorkDir),
	)
	return nil
}

func (r *Renderer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)

	dir, err := workdir.Open(item.WorkDir)
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"rendering",
			"open work directory",
			fmt.Sprintf("Could not open work directory %s", item.WorkDir),
			err,
		)
	}
	ck, err := checkpoint.Open(dir.CheckpointsDir())
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"rendering",
			"open checkpoint store",
			"Could not open the checkpoint store under the work directory",
			err,
		)
	}

	// The render stage only replays earlier checkpoints; a miss here means a
	// prior stage never completed for this work directory.
	runner := pipeline.New(r.cfg, logger, nil, nil)
	content, err := runner.Extract(ctx, dir, ck, item.VideoID)
	if err != nil {
		return replayFailure(err, "No fetched transcript found for this item; run the fetch stage first")
	}

	r.updateProgress(ctx, item, "Loading drafted sections", 20)
	summary, err := runner.Summarize(ctx, ck, item.VideoID, content)
	if err != nil {
		return replayFailure(err, "No drafted report sections found for this item; run the summarize stage first")
	}

	r.updateProgress(ctx, item, "Rendering PDF report", 60)
	doc, markdownPath, reportPath, err := runner.Render(ctx, dir, ck, item.VideoID, item.URL, content, summary)
	if err != nil {
		return err
	}

	item.ReportPath = reportPath
	item.SetProgressComplete("Rendering", fmt.Sprintf("Report ready: %s", filepath.Base(reportPath)))
	logger.Info(
		"render completed",
		logging.String(logging.FieldVideoID, item.VideoID),
		logging.String("report_path", reportPath),
		logging.String("markdown_path", markdownPath),
		logging.Int("sections", len(doc.Sections)),
	)
	return nil
}

// HealthCheck verifies the render stage can write into the output directory.
func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	const name = "renderer"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	return stage.Healthy(name)
}

// replayFailure downgrades a missing-dependency configuration error to a
// validation failure so the item routes to review instead of retrying.
func replayFailure(err error, message string) error {
	if errors.Is(err, services.ErrConfiguration) {
		return services.Wrap(services.ErrValidation, "rendering", "replay checkpoints", message, err)
	}
	return err
}

func (r *Renderer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	if r.store == nil {
		item.ProgressMessage = message
		item.ProgressPercent = percent
		return
	}
	logger := logging.WithContext(ctx, r.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := r.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist render progress", logging.Error(err))
		return
	}
	*item = copy
}
