// Package workdir lays out the per-run working directory: raw transcript,
// thumbnail, checkpoint records, and the rendered report. Re-pointing the
// pipeline at an existing directory resumes the run it belongs to.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DanHUMassMed/sumtube/internal/fileutil"
)

const (
	transcriptName  = "transcript.txt"
	thumbnailName   = "thumbnail.jpg"
	reportMarkName  = "report.md"
	reportName      = "report.pdf"
	checkpointsName = "checkpoints"
)

// Dir is one run's working directory.
type Dir struct {
	root string
}

// Open prepares the working directory rooted at path, creating it and its
// checkpoints subdirectory if needed.
func Open(path string) (*Dir, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("working directory path is required")
	}
	absolute, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(absolute, checkpointsName), 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	return &Dir{root: absolute}, nil
}

// ForVideo returns the conventional working directory path for a video id
// under the configured output root.
func ForVideo(outputRoot, videoID string) string {
	return filepath.Join(outputRoot, sanitize(videoID))
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// TranscriptPath returns the raw transcript location.
func (d *Dir) TranscriptPath() string { return filepath.Join(d.root, transcriptName) }

// ThumbnailPath returns the downloaded thumbnail location.
func (d *Dir) ThumbnailPath() string { return filepath.Join(d.root, thumbnailName) }

// ReportMarkupPath returns the assembled markup document location.
func (d *Dir) ReportMarkupPath() string { return filepath.Join(d.root, reportMarkName) }

// ReportPath returns the rendered report location.
func (d *Dir) ReportPath() string { return filepath.Join(d.root, reportName) }

// CheckpointsDir returns the checkpoint record directory.
func (d *Dir) CheckpointsDir() string { return filepath.Join(d.root, checkpointsName) }

// WriteTranscript persists the raw transcript.
func (d *Dir) WriteTranscript(text []byte) error {
	return fileutil.WriteAtomic(d.TranscriptPath(), text, 0o644)
}

// ReadTranscript loads the raw transcript.
func (d *Dir) ReadTranscript() ([]byte, error) {
	return os.ReadFile(d.TranscriptPath())
}

// WriteThumbnail persists the thumbnail image, skipping empty payloads.
func (d *Dir) WriteThumbnail(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return fileutil.WriteAtomic(d.ThumbnailPath(), data, 0o644)
}

// HasThumbnail reports whether a thumbnail was stored for this run.
func (d *Dir) HasThumbnail() bool {
	info, err := os.Stat(d.ThumbnailPath())
	return err == nil && !info.IsDir() && info.Size() > 0
}

// WriteReportMarkup persists the assembled markup document.
func (d *Dir) WriteReportMarkup(text []byte) error {
	return fileutil.WriteAtomic(d.ReportMarkupPath(), text, 0o644)
}

// WriteReport persists the rendered PDF report.
func (d *Dir) WriteReport(data []byte) error {
	return fileutil.WriteAtomic(d.ReportPath(), data, 0o644)
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
