package pipeline

import (
	"context"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/services"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// StepExtracted names the content extraction checkpoint and progress step.
const StepExtracted = "extracted"

// Extract fetches the video content, gated by the extraction checkpoint, and
// mirrors the transcript and thumbnail into the work directory.
func (r *Runner) Extract(ctx context.Context, dir *workdir.Dir, ck *checkpoint.Store, videoID string) (Content, error) {
	key := checkpoint.Key{
		Step:   StepExtracted,
		Params: []checkpoint.Param{checkpoint.P("video_id", videoID)},
	}

	cached := ck.Has(key)
	content, err := checkpoint.GetOrComputeJSON(ctx, ck, key, func(ctx context.Context) (Content, error) {
		if r.source == nil {
			return Content{}, services.Wrap(services.ErrConfiguration, StepExtracted, "fetch content",
				"no content source configured", nil)
		}
		return r.source.Fetch(ctx, videoID)
	})
	if err != nil {
		return Content{}, err
	}

	if err := dir.WriteTranscript(content.Transcript); err != nil {
		return Content{}, err
	}
	if err := dir.WriteThumbnail(content.Thumbnail); err != nil {
		return Content{}, err
	}

	r.logger.Info(
		"content extracted",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("title", content.Title),
		logging.Int("transcript_bytes", len(content.Transcript)),
		logging.Bool("from_checkpoint", cached),
	)
	r.report(StepExtracted, 100, "transcript fetched")
	return content, nil
}
