package renderer_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/renderer"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/services/ollama"
	"github.com/DanHUMassMed/sumtube/internal/testsupport"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

type scriptedGen struct {
	mu sync.Mutex
}

func (g *scriptedGen) Generate(ctx context.Context, req ollama.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	digest := sha256.Sum256([]byte(req.Prompt))
	return "generated-" + hex.EncodeToString(digest[:4]), nil
}

type staticSource struct {
	content pipeline.Content
}

func (s staticSource) Fetch(ctx context.Context, videoID string) (pipeline.Content, error) {
	return s.content, nil
}

// seedSummarizedItem walks a queue item through extraction and summarization
// so only the render checkpoints remain.
func seedSummarizedItem(t *testing.T, cfg *config.Config, store *queue.Store) *queue.Item {
	t.Helper()
	item := testsupport.AddItem(t, store, "https://youtu.be/abc123DEF45", "abc123DEF45")
	item.WorkDir = workdir.ForVideo(cfg.Paths.OutputDir, item.VideoID)
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("update item: %v", err)
	}

	dir, err := workdir.Open(item.WorkDir)
	if err != nil {
		t.Fatalf("open work dir: %v", err)
	}
	ck, err := checkpoint.Open(dir.CheckpointsDir())
	if err != nil {
		t.Fatalf("open checkpoints: %v", err)
	}

	source := staticSource{content: pipeline.Content{
		Title:      "Garbage Collection Deep Dive",
		Transcript: []byte(testsupport.Transcript(200)),
	}}
	runner := pipeline.New(cfg, logging.NewNop(), source, &scriptedGen{})
	ctx := context.Background()
	content, err := runner.Extract(ctx, dir, ck, item.VideoID)
	if err != nil {
		t.Fatalf("seed extraction: %v", err)
	}
	if _, err := runner.Summarize(ctx, ck, item.VideoID, content); err != nil {
		t.Fatalf("seed summarization: %v", err)
	}
	return item
}

func TestExecuteRendersReport(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunking(256, 16))
	store := testsupport.MustOpenStore(t, cfg)
	item := seedSummarizedItem(t, cfg, store)

	handler := renderer.NewRenderer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.ReportPath == "" {
		t.Fatal("expected report path on item")
	}
	data, err := os.ReadFile(item.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatal("expected a PDF report")
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress percent = %v, want 100", item.ProgressPercent)
	}
}

func TestExecuteTwiceProducesIdenticalReport(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunking(256, 16))
	store := testsupport.MustOpenStore(t, cfg)
	item := seedSummarizedItem(t, cfg, store)

	handler := renderer.NewRenderer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	first, err := os.ReadFile(item.ReportPath)
	if err != nil {
		t.Fatalf("read first report: %v", err)
	}

	if err := os.Remove(item.ReportPath); err != nil {
		t.Fatalf("remove report: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	second, err := os.ReadFile(item.ReportPath)
	if err != nil {
		t.Fatalf("read second report: %v", err)
	}

	if sha256.Sum256(first) != sha256.Sum256(second) {
		t.Fatal("expected byte-identical report after re-render")
	}
}

func TestExecuteWithoutSummariesFailsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.AddItem(t, store, "https://youtu.be/abc123DEF45", "abc123DEF45")
	item.WorkDir = workdir.ForVideo(cfg.Paths.OutputDir, item.VideoID)

	handler := renderer.NewRenderer(cfg, store, logging.NewNop())
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrepareRejectsUnsummarizedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.AddItem(t, store, "https://youtu.be/abc123DEF45", "")

	handler := renderer.NewRenderer(cfg, store, logging.NewNop())
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckRequiresOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := renderer.NewRenderer(cfg, store, logging.NewNop())
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got detail %q", health.Detail)
	}

	cfg.Paths.OutputDir = ""
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without an output directory")
	}
}
