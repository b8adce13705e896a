package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/config"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/services/ollama"
	"github.com/DanHUMassMed/sumtube/internal/testsupport"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

type fakeSource struct {
	content    pipeline.Content
	fetchCalls int
}

func (s *fakeSource) Fetch(context.Context, string) (pipeline.Content, error) {
	s.fetchCalls++
	return s.content, nil
}

// fakeGen produces deterministic output per prompt and can be told to fail
// once a number of generations have happened, simulating a crash mid-run.
type fakeGen struct {
	mu        sync.Mutex
	calls     int
	failAfter int
	inFlight  int
	peak      int
}

var errInjected = errors.New("injected generator failure")

func (g *fakeGen) Generate(_ context.Context, req ollama.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	call := g.calls
	fail := g.failAfter > 0 && call > g.failAfter
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if fail {
		return "", errInjected
	}
	sum := sha256.Sum256([]byte(req.Prompt))
	return "generated-" + hex.EncodeToString(sum[:8]), nil
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newRunConfig(t *testing.T, chunkSize, overlap int) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithChunking(chunkSize, overlap))
}

func openWorkDir(t *testing.T, cfg *config.Config, videoID string) *workdir.Dir {
	t.Helper()
	dir, err := workdir.Open(workdir.ForVideo(cfg.Paths.OutputDir, videoID))
	if err != nil {
		t.Fatalf("workdir.Open: %v", err)
	}
	return dir
}

func transcriptOfWords(words int) []byte {
	return []byte(testsupport.Transcript(words))
}

func TestRunProducesReport(t *testing.T) {
	cfg := newRunConfig(t, 256, 16)
	source := &fakeSource{content: pipeline.Content{
		Title:      "A Great Talk",
		Transcript: transcriptOfWords(200),
	}}
	gen := &fakeGen{}
	runner := pipeline.New(cfg, logging.NewNop(), source, gen)
	dir := openWorkDir(t, cfg, "vid1")

	result, err := runner.Run(context.Background(), dir, "vid1", "https://youtu.be/vid1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Summary.Introduction == "" || result.Summary.Body == "" || result.Summary.Conclusion == "" {
		t.Fatalf("missing report sections: %#v", result.Summary)
	}
	if len(result.Summary.ChunkSummaries) < 2 {
		t.Fatalf("expected multiple chunk summaries, got %d", len(result.Summary.ChunkSummaries))
	}

	pdf, err := os.ReadFile(result.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(pdf) == 0 || string(pdf[:5]) != "%PDF-" {
		t.Fatal("report is not a PDF")
	}
	markdown, err := os.ReadFile(result.MarkdownPath)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(markdown), "A Great Talk") {
		t.Fatal("markdown missing title")
	}
}

func TestCrashedRunResumesWithoutRecomputingFinishedChunks(t *testing.T) {
	cfg := newRunConfig(t, 128, 8)
	transcript := transcriptOfWords(400)
	source := &fakeSource{content: pipeline.Content{Title: "Resumable", Transcript: transcript}}
	dir := openWorkDir(t, cfg, "vid2")

	// First run dies partway through the chunk fan-out.
	crashing := &fakeGen{failAfter: 7}
	runner := pipeline.New(cfg, logging.NewNop(), source, crashing)
	if _, err := runner.Run(context.Background(), dir, "vid2", "url"); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	firstRunCalls := crashing.callCount()
	if firstRunCalls < 7 {
		t.Fatalf("expected at least 7 generations before the crash, got %d", firstRunCalls)
	}

	// Second run finishes the job.
	healthy := &fakeGen{}
	resumed := pipeline.New(cfg, logging.NewNop(), source, healthy)
	result, err := resumed.Run(context.Background(), dir, "vid2", "url")
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	chunkCount := len(result.Summary.ChunkSummaries)
	// Everything that completed before the crash must come from checkpoints:
	// total generations across both runs equals one full run's worth.
	fullRun := chunkCount + 3
	total := firstRunCalls - countFailures(firstRunCalls, 7) + healthy.callCount()
	if total != fullRun {
		t.Fatalf("expected %d successful generations total, got %d (first=%d resumed=%d)",
			fullRun, total, firstRunCalls, healthy.callCount())
	}
}

// countFailures returns how many of the first run's calls failed (every call
// past failAfter fails).
func countFailures(calls, failAfter int) int {
	if calls <= failAfter {
		return 0
	}
	return calls - failAfter
}

func TestResumedRunProducesIdenticalReportBytes(t *testing.T) {
	cfg := newRunConfig(t, 128, 8)
	transcript := transcriptOfWords(300)
	source := &fakeSource{content: pipeline.Content{Title: "Deterministic", Transcript: transcript}}
	dir := openWorkDir(t, cfg, "vid3")

	runner := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{})
	first, err := runner.Run(context.Background(), dir, "vid3", "url")
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstPDF, err := os.ReadFile(first.ReportPath)
	if err != nil {
		t.Fatalf("read first report: %v", err)
	}

	// Delete the rendered outputs and rerun: checkpoints replay and the
	// rewritten report must be byte-identical.
	if err := os.Remove(first.ReportPath); err != nil {
		t.Fatalf("remove report: %v", err)
	}
	rerun := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{})
	second, err := rerun.Run(context.Background(), dir, "vid3", "url")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	secondPDF, err := os.ReadFile(second.ReportPath)
	if err != nil {
		t.Fatalf("read second report: %v", err)
	}
	if !strings.EqualFold(hexDigest(firstPDF), hexDigest(secondPDF)) {
		t.Fatal("resumed run produced different report bytes")
	}
}

func hexDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestCompletedRunReplaysEntirelyFromCheckpoints(t *testing.T) {
	cfg := newRunConfig(t, 256, 16)
	source := &fakeSource{content: pipeline.Content{Title: "Cached", Transcript: transcriptOfWords(200)}}
	dir := openWorkDir(t, cfg, "vid4")

	if _, err := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{}).Run(context.Background(), dir, "vid4", "url"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	replay := &fakeGen{}
	if _, err := pipeline.New(cfg, logging.NewNop(), source, replay).Run(context.Background(), dir, "vid4", "url"); err != nil {
		t.Fatalf("replay run failed: %v", err)
	}
	if replay.callCount() != 0 {
		t.Fatalf("replay run generated %d times, want 0", replay.callCount())
	}
	if source.fetchCalls != 1 {
		t.Fatalf("content fetched %d times, want 1", source.fetchCalls)
	}
}

func TestModelChangeUsesFreshKeysAndKeepsOldRecords(t *testing.T) {
	cfg := newRunConfig(t, 256, 16)
	source := &fakeSource{content: pipeline.Content{Title: "Sticky", Transcript: transcriptOfWords(150)}}
	dir := openWorkDir(t, cfg, "vid5")
	originalModel := cfg.Ollama.Model

	if _, err := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{}).Run(context.Background(), dir, "vid5", "url"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A different model derives different step keys, so its generations run
	// fresh instead of silently reusing the old model's output.
	cfg.Ollama.Model = "some-other-model"
	second := &fakeGen{}
	if _, err := pipeline.New(cfg, logging.NewNop(), source, second).Run(context.Background(), dir, "vid5", "url"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.callCount() == 0 {
		t.Fatal("model change reused checkpoints, want regeneration under new keys")
	}

	// The first model's records are left in place, not invalidated: running
	// it again replays entirely from checkpoint.
	cfg.Ollama.Model = originalModel
	replay := &fakeGen{}
	if _, err := pipeline.New(cfg, logging.NewNop(), source, replay).Run(context.Background(), dir, "vid5", "url"); err != nil {
		t.Fatalf("replay run failed: %v", err)
	}
	if replay.callCount() != 0 {
		t.Fatalf("replay under the original model generated %d times, want 0", replay.callCount())
	}
}

func TestContextWindowChangeUsesFreshKeys(t *testing.T) {
	cfg := newRunConfig(t, 256, 16)
	source := &fakeSource{content: pipeline.Content{Title: "Budgets", Transcript: transcriptOfWords(150)}}
	dir := openWorkDir(t, cfg, "vid7")

	if _, err := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{}).Run(context.Background(), dir, "vid7", "url"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Doubling the context window changes every per-item byte budget baked
	// into the prompts, so summaries regenerate instead of replaying.
	cfg.Ollama.NumCtx *= 2
	second := &fakeGen{}
	if _, err := pipeline.New(cfg, logging.NewNop(), source, second).Run(context.Background(), dir, "vid7", "url"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.callCount() == 0 {
		t.Fatal("context-window change reused checkpoints computed under the old budget")
	}
}

func TestWorkerLimitIsRespected(t *testing.T) {
	cfg := newRunConfig(t, 64, 4)
	cfg.Chunking.Workers = 2
	source := &fakeSource{content: pipeline.Content{Title: "Parallel", Transcript: transcriptOfWords(400)}}
	gen := &fakeGen{}
	dir := openWorkDir(t, cfg, "vid6")

	if _, err := pipeline.New(cfg, logging.NewNop(), source, gen).Run(context.Background(), dir, "vid6", "url"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gen.peak > 2 {
		t.Fatalf("observed %d concurrent generations, limit is 2", gen.peak)
	}
}

func TestBudgetExceededSurfacesAsBudgetError(t *testing.T) {
	cfg := newRunConfig(t, 64, 4)
	// A tiny context window cannot give each chunk a viable response budget.
	cfg.Ollama.NumCtx = 64
	cfg.Budget.MinResponseBytes = 256
	source := &fakeSource{content: pipeline.Content{Title: "Too Big", Transcript: transcriptOfWords(500)}}
	dir := openWorkDir(t, cfg, "vid7")

	_, err := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{}).Run(context.Background(), dir, "vid7", "url")
	if !errors.Is(err, services.ErrBudget) {
		t.Fatalf("expected ErrBudget, got %v", err)
	}
}

func TestProgressCallbackSeesChunkFanOut(t *testing.T) {
	cfg := newRunConfig(t, 128, 8)
	source := &fakeSource{content: pipeline.Content{Title: "Progress", Transcript: transcriptOfWords(300)}}
	dir := openWorkDir(t, cfg, "vid8")

	var mu sync.Mutex
	steps := map[string]int{}
	runner := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{},
		pipeline.WithProgress(func(step string, percent float64, message string) {
			mu.Lock()
			steps[step]++
			mu.Unlock()
			if percent < 0 || percent > 100 {
				t.Errorf("step %s reported percent %v", step, percent)
			}
		}))
	if _, err := runner.Run(context.Background(), dir, "vid8", "url"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, step := range []string{"extracted", "chunked", "chunk-summary", "concatenated", "introduction", "body", "conclusion", "assembled", "rendered"} {
		if steps[step] == 0 {
			t.Fatalf("no progress reported for step %q (got %v)", step, steps)
		}
	}
}

func TestRunWritesTranscriptIntoWorkDir(t *testing.T) {
	cfg := newRunConfig(t, 256, 16)
	transcript := transcriptOfWords(100)
	source := &fakeSource{content: pipeline.Content{Title: "Files", Transcript: transcript}}
	dir := openWorkDir(t, cfg, "vid9")

	if _, err := pipeline.New(cfg, logging.NewNop(), source, &fakeGen{}).Run(context.Background(), dir, "vid9", "url"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	stored, err := dir.ReadTranscript()
	if err != nil {
		t.Fatalf("ReadTranscript: %v", err)
	}
	if string(stored) != string(transcript) {
		t.Fatal("stored transcript differs from fetched transcript")
	}
}
