package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"log/slog"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/services/ollama"
	"github.com/DanHUMassMed/sumtube/internal/stage"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// HealthChecker reports whether the generation backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Summarizer turns a fetched transcript into report sections via the
// checkpointed summarization pipeline.
type Summarizer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	gen    pipeline.Generator

	progressMu sync.Mutex
}

// NewSummarizer constructs the summarize stage handler using default dependencies.
func NewSummarizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Summarizer {
	client := ollama.NewClient(ollama.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		Temperature:    cfg.Ollama.Temperature,
		NumCtx:         cfg.Ollama.NumCtx,
		BytesPerToken:  cfg.Budget.BytesPerToken,
		TimeoutSeconds: cfg.Ollama.TimeoutSeconds,
	})
	return NewSummarizerWithDependencies(cfg, store, logger, client)
}

// NewSummarizerWithDependencies allows injecting the generator (used in tests).
func NewSummarizerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, gen pipeline.Generator) *Summarizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "summarizer"))
	}
	return &Summarizer{store: store, cfg: cfg, logger: stageLogger, gen: gen}
}

// SetLogger updates the summarizer's logging destination while preserving component labeling.
func (s *Summarizer) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "summarizer")
}

func (s *Summarizer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if strings.TrimSpace(item.VideoID) == "" || strings.TrimSpace(item.WorkDir) == "" {
		return services.Wrap(
			services.ErrValidation,
			"summarizing",
			"validate inputs",
			"Queue item has no fetched content; run the fetch stage before summarizing",
			nil,
		)
	}
	item.InitProgress("Summarizing", "Preparing transcript summarization")
	logger.Info(
		"starting summarization preparation",
		logging.String(logging.FieldVideoID, item.VideoID),
		logging.String("work_dir", item.WorkDir),
	)
	return nil
}

func (s *Summarizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	dir, err := workdir.Open(item.WorkDir)
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"summarizing",
			"open work directory",
			fmt.Sprintf("Could not open work directory %s", item.WorkDir),
			err,
		)
	}
	ck, err := checkpoint.Open(dir.CheckpointsDir())
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"summarizing",
			"open checkpoint store",
			"Could not open the checkpoint store under the work directory",
			err,
		)
	}

	runner := pipeline.New(s.cfg, logger, nil, s.gen, pipeline.WithProgress(s.progressFunc(ctx, item)))

	content, err := runner.Extract(ctx, dir, ck, item.VideoID)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return services.Wrap(
				services.ErrValidation,
				"summarizing",
				"load fetched content",
				"No fetched transcript found for this item; run the fetch stage first",
				err,
			)
		}
		return err
	}

	summary, err := runner.Summarize(ctx, ck, item.VideoID, content)
	if err != nil {
		return err
	}

	item.SetProgressComplete("Summarizing", fmt.Sprintf("Summarized %d chunks into report sections", len(summary.ChunkSummaries)))
	logger.Info(
		"summarization completed",
		logging.String(logging.FieldVideoID, item.VideoID),
		logging.Int("chunk_summaries", len(summary.ChunkSummaries)),
		logging.Int("combined_bytes", len(summary.Combined)),
	)
	return nil
}

// HealthCheck verifies the summarize stage can reach the generation backend.
func (s *Summarizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "summarizer"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(s.cfg.Ollama.Model) == "" {
		return stage.Unhealthy(name, "model not configured")
	}
	if s.gen == nil {
		return stage.Unhealthy(name, "generator unavailable")
	}
	if checker, ok := s.gen.(HealthChecker); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return stage.Unhealthy(name, err.Error())
		}
	}
	return stage.Healthy(name)
}

// progressFunc maps pipeline step completion into queue progress bands so the
// chunk fan-out dominates the visible progress bar.
func (s *Summarizer) progressFunc(ctx context.Context, item *queue.Item) pipeline.ProgressFunc {
	return func(step string, percent float64, message string) {
		s.updateProgress(ctx, item, message, stagePercent(step, percent))
	}
}

func stagePercent(step string, percent float64) float64 {
	switch step {
	case pipeline.StepExtracted:
		return 5
	case pipeline.StepChunked:
		return 10
	case pipeline.StepChunkSummary:
		return 10 + percent*0.70
	case pipeline.StepConcatenated:
		return 82
	case pipeline.StepIntroduction, pipeline.StepBody, pipeline.StepConclusion:
		return 82 + percent*0.18
	default:
		return percent
	}
}

// updateProgress is safe for concurrent use: chunk summaries report
// completion from the worker pool goroutines.
func (s *Summarizer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if s.store == nil {
		item.ProgressMessage = message
		item.ProgressPercent = percent
		return
	}
	logger := logging.WithContext(ctx, s.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := s.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist summarization progress", logging.Error(err))
		return
	}
	*item = copy
}
