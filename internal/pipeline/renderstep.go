package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/services/render"
	"github.com/DanHUMassMed/sumtube/internal/workdir"
)

// Checkpoint and progress step names for the rendering passes.
const (
	StepAssembled = "assembled"
	StepRendered  = "rendered"
)

type renderedRecord struct {
	MarkdownSHA256 string `json:"markdown_sha256"`
	ReportSHA256   string `json:"report_sha256"`
}

// Render assembles the final document and writes the Markdown and PDF
// reports. Assembly is checkpointed so the generation timestamp, and with it
// the rendered bytes, stay identical across resumed runs.
func (r *Runner) Render(ctx context.Context, dir *workdir.Dir, ck *checkpoint.Store, videoID, sourceURL string, content Content, summary Summary) (render.Document, string, string, error) {
	assembleKey := checkpoint.Key{
		Step: StepAssembled,
		Params: append([]checkpoint.Param{
			checkpoint.P("video_id", videoID),
		}, r.generationParams()...),
	}
	doc, err := checkpoint.GetOrComputeJSON(ctx, ck, assembleKey, func(context.Context) (render.Document, error) {
		return render.Document{
			Title:       content.Title,
			VideoID:     videoID,
			SourceURL:   sourceURL,
			GeneratedAt: time.Now().UTC().Truncate(time.Second),
			Thumbnail:   content.Thumbnail,
			Sections: []render.Section{
				{Heading: "Introduction", Body: summary.Introduction},
				{Heading: "Summary", Body: summary.Body},
				{Heading: "Conclusion", Body: summary.Conclusion},
			},
		}, nil
	})
	if err != nil {
		return render.Document{}, "", "", err
	}
	r.report(StepAssembled, 100, "document assembled")

	markdown := render.Markdown(doc)
	var pdf bytes.Buffer
	if err := render.PDF(doc, &pdf); err != nil {
		return render.Document{}, "", "", err
	}

	renderKey := checkpoint.Key{
		Step: StepRendered,
		Params: append([]checkpoint.Param{
			checkpoint.P("video_id", videoID),
		}, r.generationParams()...),
	}
	record, err := checkpoint.GetOrComputeJSON(ctx, ck, renderKey, func(context.Context) (renderedRecord, error) {
		if err := dir.WriteReportMarkup(markdown); err != nil {
			return renderedRecord{}, err
		}
		if err := dir.WriteReport(pdf.Bytes()); err != nil {
			return renderedRecord{}, err
		}
		return renderedRecord{
			MarkdownSHA256: digest(markdown),
			ReportSHA256:   digest(pdf.Bytes()),
		}, nil
	})
	if err != nil {
		return render.Document{}, "", "", err
	}

	// The checkpoint can outlive the files it describes (a cleaned output
	// directory, for example). Rendering is deterministic, so rewrite them.
	if record.ReportSHA256 != "" && !fileExists(dir.ReportPath()) {
		if err := dir.WriteReportMarkup(markdown); err != nil {
			return render.Document{}, "", "", err
		}
		if err := dir.WriteReport(pdf.Bytes()); err != nil {
			return render.Document{}, "", "", err
		}
	}

	r.logger.Info(
		"report rendered",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("report", dir.ReportPath()),
		logging.Int("pdf_bytes", pdf.Len()),
	)
	r.report(StepRendered, 100, "report rendered")
	return doc, dir.ReportMarkupPath(), dir.ReportPath(), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
