package pipeline

import (
	"context"
	"log/slog"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/services/ollama"
	"github.com/DanHUMassMed/sumtube/internal/services/render"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// Content is the raw material fetched for one video.
type Content struct {
	Title      string `json:"title"`
	Transcript []byte `json:"transcript"`
	Thumbnail  []byte `json:"thumbnail,omitempty"`
}

// ContentSource fetches the title, transcript, and thumbnail for a video.
type ContentSource interface {
	Fetch(ctx context.Context, videoID string) (Content, error)
}

// Generator produces text from a prompt. *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req ollama.Request) (string, error)
}

// Summary holds every intermediate generation artifact for one run.
type Summary struct {
	ChunkSummaries []string `json:"chunk_summaries"`
	Combined       string   `json:"combined"`
	Introduction   string   `json:"introduction"`
	Body           string   `json:"body"`
	Conclusion     string   `json:"conclusion"`
}

// Result reports where the rendered artifacts ended up.
type Result struct {
	Content      Content
	Summary      Summary
	Document     render.Document
	MarkdownPath string
	ReportPath   string
}

// ProgressFunc receives step completion updates while a run executes.
type ProgressFunc func(step string, percent float64, message string)

// Runner drives the checkpoint-gated summarization pipeline for one video.
// Every step is wrapped in a checkpoint lookup, so a rerun after a crash
// recomputes only the steps that never completed.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	source   ContentSource
	gen      Generator
	progress ProgressFunc
}

// Option customizes a Runner.
type Option func(*Runner)

// WithProgress registers a callback for step progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// New constructs a pipeline runner.
func New(cfg *config.Config, logger *slog.Logger, source ContentSource, gen Generator, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		cfg:    cfg,
		logger: logger,
		source: source,
		gen:    gen,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run executes the full pipeline: fetch, chunk, summarize, synthesize, and
// render, resuming from checkpoints stored under the work directory.
func (r *Runner) Run(ctx context.Context, dir *workdir.Dir, videoID, sourceURL string) (Result, error) {
	ck, err := checkpoint.Open(dir.CheckpointsDir())
	if err != nil {
		return Result{}, err
	}

	content, err := r.Extract(ctx, dir, ck, videoID)
	if err != nil {
		return Result{}, err
	}

	summary, err := r.Summarize(ctx, ck, videoID, content)
	if err != nil {
		return Result{Content: content}, err
	}

	doc, markdownPath, reportPath, err := r.Render(ctx, dir, ck, videoID, sourceURL, content, summary)
	if err != nil {
		return Result{Content: content, Summary: summary}, err
	}

	return Result{
		Content:      content,
		Summary:      summary,
		Document:     doc,
		MarkdownPath: markdownPath,
		ReportPath:   reportPath,
	}, nil
}

func (r *Runner) report(step string, percent float64, message string) {
	if r.progress != nil {
		r.progress(step, percent, message)
	}
}
