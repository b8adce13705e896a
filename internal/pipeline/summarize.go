package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/DanHUMassMed/sumtube/internal/budget"
	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/chunker"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/services/ollama"
)

// Checkpoint and progress step names for the summarization passes.
const (
	StepChunked      = "chunked"
	StepChunkSummary = "chunk-summary"
	StepConcatenated = "concatenated"
	StepIntroduction = "introduction"
	StepBody         = "body"
	StepConclusion   = "conclusion"

	// The synthesis pass generates the introduction, body, and conclusion
	// from the combined chunk summaries.
	synthesisFanIn = 3
)

// Summarize chunks the transcript, summarizes each chunk within its byte
// budget, and synthesizes the introduction, body, and conclusion. Every
// generation is checkpoint-gated, so a rerun resumes where the last run died.
func (r *Runner) Summarize(ctx context.Context, ck *checkpoint.Store, videoID string, content Content) (Summary, error) {
	chunks, err := r.chunkTranscript(ctx, ck, videoID, content.Transcript)
	if err != nil {
		return Summary{}, err
	}

	chunkSummaries, err := r.summarizeChunks(ctx, ck, videoID, content.Transcript, chunks)
	if err != nil {
		return Summary{}, err
	}

	combined, err := r.concatenate(ctx, ck, videoID, chunkSummaries)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{ChunkSummaries: chunkSummaries, Combined: combined}
	if err := r.synthesize(ctx, ck, videoID, combined, &summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (r *Runner) chunkTranscript(ctx context.Context, ck *checkpoint.Store, videoID string, transcript []byte) ([]chunker.Chunk, error) {
	chunkSize := r.cfg.Chunking.RawChunkSize
	overlap := r.cfg.Chunking.OverlapSize
	key := checkpoint.Key{
		Step: StepChunked,
		Params: []checkpoint.Param{
			checkpoint.P("video_id", videoID),
			checkpoint.PInt("chunk_size", chunkSize),
			checkpoint.PInt("overlap", overlap),
		},
	}
	chunks, err := checkpoint.GetOrComputeJSON(ctx, ck, key, func(context.Context) ([]chunker.Chunk, error) {
		split, splitErr := chunker.Split(transcript, chunkSize, overlap)
		if splitErr != nil {
			return nil, services.Wrap(services.ErrConfiguration, StepChunked, "split transcript",
				"invalid chunking configuration", splitErr)
		}
		return split, nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info(
		"transcript chunked",
		logging.String(logging.FieldVideoID, videoID),
		logging.Int("chunks", len(chunks)),
		logging.Int("chunk_size", chunkSize),
		logging.Int("overlap", overlap),
	)
	r.report(StepChunked, 100, fmt.Sprintf("%d chunks", len(chunks)))
	return chunks, nil
}

// generationParams are the inputs every model-derived checkpoint key must
// carry. A key that omitted them would silently reuse output produced under
// different model settings. The budget fields belong here because they decide
// the per-item byte allowance baked into each prompt and response cap.
func (r *Runner) generationParams() []checkpoint.Param {
	return []checkpoint.Param{
		checkpoint.P("model", r.cfg.Ollama.Model),
		checkpoint.PFloat("temperature", r.cfg.Ollama.Temperature),
		checkpoint.PInt("num_ctx", r.cfg.Ollama.NumCtx),
		checkpoint.PInt("bytes_per_token", r.cfg.Budget.BytesPerToken),
		checkpoint.PFloat("reserved_fraction", r.cfg.Budget.ReservedFraction),
		checkpoint.P("prompt", promptVersion),
	}
}

func (r *Runner) budgetPlan(fanIn int) budget.Plan {
	return budget.Plan{
		ContextWindowTokens: r.cfg.Ollama.NumCtx,
		BytesPerToken:       r.cfg.Budget.BytesPerToken,
		ReservedFraction:    r.cfg.Budget.ReservedFraction,
		FanInCount:          fanIn,
		MinItemBytes:        r.cfg.Budget.MinResponseBytes,
	}
}

func (r *Runner) itemBudget(fanIn int, op string) (int, error) {
	itemBytes, err := r.budgetPlan(fanIn).ItemBudget()
	if err != nil {
		return 0, services.Wrap(services.ErrBudget, "summarizing", op,
			fmt.Sprintf("context window cannot accommodate %d summaries", fanIn), err)
	}
	return itemBytes, nil
}

func (r *Runner) summarizeChunks(ctx context.Context, ck *checkpoint.Store, videoID string, transcript []byte, chunks []chunker.Chunk) ([]string, error) {
	itemBytes, err := r.itemBudget(len(chunks), "chunk summaries")
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Chunking.Workers
	if workers <= 0 {
		workers = 1
	}

	summaries := make([]string, len(chunks))
	var completed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := range chunks {
		chunk := chunks[i]
		index := i
		group.Go(func() error {
			key := checkpoint.Key{
				Step: StepChunkSummary,
				Params: append([]checkpoint.Param{
					checkpoint.P("video_id", videoID),
					checkpoint.PInt("index", chunk.Index),
					checkpoint.PInt("start", chunk.Start),
					checkpoint.PInt("end", chunk.End),
					checkpoint.PInt("count", len(chunks)),
				}, r.generationParams()...),
			}
			text, genErr := checkpoint.GetOrComputeJSON(groupCtx, ck, key, func(ctx context.Context) (string, error) {
				if r.gen == nil {
					return "", services.Wrap(services.ErrConfiguration, StepChunkSummary, "summarize chunk",
						"no generator configured", nil)
				}
				return r.gen.Generate(ctx, ollama.Request{
					SystemPrompt:     systemPrompt,
					Prompt:           chunkSummaryPrompt(string(chunk.Slice(transcript)), itemBytes),
					MaxResponseBytes: itemBytes,
				})
			})
			if genErr != nil {
				return fmt.Errorf("summarize chunk %d of %d: %w", chunk.Index+1, len(chunks), genErr)
			}
			summaries[index] = text
			done := int(completed.Add(1))
			r.report(StepChunkSummary, float64(done)/float64(len(chunks))*100,
				fmt.Sprintf("chunk %d of %d", done, len(chunks)))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info(
		"chunks summarized",
		logging.String(logging.FieldVideoID, videoID),
		logging.Int("chunks", len(chunks)),
		logging.Int("item_budget_bytes", itemBytes),
		logging.Int("workers", workers),
	)
	return summaries, nil
}

func (r *Runner) concatenate(ctx context.Context, ck *checkpoint.Store, videoID string, chunkSummaries []string) (string, error) {
	key := checkpoint.Key{
		Step: StepConcatenated,
		Params: append([]checkpoint.Param{
			checkpoint.P("video_id", videoID),
			checkpoint.PInt("count", len(chunkSummaries)),
		}, r.generationParams()...),
	}
	combined, err := checkpoint.GetOrComputeJSON(ctx, ck, key, func(context.Context) (string, error) {
		parts := make([]string, 0, len(chunkSummaries)+1)
		if len(chunkSummaries) > 1 {
			parts = append(parts, combinedNote(len(chunkSummaries)))
		}
		for _, summary := range chunkSummaries {
			if trimmed := strings.TrimSpace(summary); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		return strings.Join(parts, "\n\n"), nil
	})
	if err != nil {
		return "", err
	}
	r.report(StepConcatenated, 100, "summaries combined")
	return combined, nil
}

func (r *Runner) synthesize(ctx context.Context, ck *checkpoint.Store, videoID, combined string, summary *Summary) error {
	itemBytes, err := r.itemBudget(synthesisFanIn, "report sections")
	if err != nil {
		return err
	}

	sections := []struct {
		step   string
		prompt string
		target *string
	}{
		{StepIntroduction, introductionPrompt(combined, itemBytes), &summary.Introduction},
		{StepBody, bodyPrompt(combined, itemBytes), &summary.Body},
		{StepConclusion, conclusionPrompt(combined, itemBytes), &summary.Conclusion},
	}

	for i, section := range sections {
		key := checkpoint.Key{
			Step: section.step,
			Params: append([]checkpoint.Param{
				checkpoint.P("video_id", videoID),
			}, r.generationParams()...),
		}
		prompt := section.prompt
		text, genErr := checkpoint.GetOrComputeJSON(ctx, ck, key, func(ctx context.Context) (string, error) {
			if r.gen == nil {
				return "", services.Wrap(services.ErrConfiguration, section.step, "draft section",
					"no generator configured", nil)
			}
			return r.gen.Generate(ctx, ollama.Request{
				SystemPrompt:     systemPrompt,
				Prompt:           prompt,
				MaxResponseBytes: itemBytes,
			})
		})
		if genErr != nil {
			return fmt.Errorf("draft %s: %w", section.step, genErr)
		}
		*section.target = text
		r.report(section.step, float64(i+1)/float64(len(sections))*100, section.step+" drafted")
	}

	r.logger.Info(
		"report sections drafted",
		logging.String(logging.FieldVideoID, videoID),
		logging.Int("item_budget_bytes", itemBytes),
	)
	return nil
}
