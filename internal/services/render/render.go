package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Section is one titled block of the assembled report.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Document is the fully assembled report, ready to render. GeneratedAt is
// fixed when the document is assembled so repeated renders of the same
// document produce identical output.
type Document struct {
	Title       string    `json:"title"`
	VideoID     string    `json:"video_id"`
	SourceURL   string    `json:"source_url"`
	GeneratedAt time.Time `json:"generated_at"`
	Thumbnail   []byte    `json:"thumbnail,omitempty"`
	Sections    []Section `json:"sections"`
}

// Markdown renders the document as a Markdown report.
func Markdown(doc Document) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", strings.TrimSpace(doc.Title))
	if doc.SourceURL != "" {
		fmt.Fprintf(&buf, "Source: %s\n\n", doc.SourceURL)
	}
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&buf, "Generated: %s\n\n", doc.GeneratedAt.UTC().Format(time.RFC3339))
	}
	for _, section := range doc.Sections {
		if heading := strings.TrimSpace(section.Heading); heading != "" {
			fmt.Fprintf(&buf, "## %s\n\n", heading)
		}
		if body := strings.TrimSpace(section.Body); body != "" {
			fmt.Fprintf(&buf, "%s\n\n", body)
		}
	}
	return buf.Bytes()
}

const (
	pageMarginMM    = 20.0
	bodyLineHeight  = 5.5
	thumbnailWidth  = 80.0
	thumbnailHeight = 45.0
)

// PDF renders the document as a PDF report and writes it to w.
func PDF(doc Document, w io.Writer) error {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return errors.New("render pdf: document title required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(true, pageMarginMM)
	if !doc.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.GeneratedAt.UTC())
	}
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 9, tr(title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	if doc.SourceURL != "" {
		pdf.MultiCell(0, 4.5, tr(doc.SourceURL), "", "L", false)
	}
	if !doc.GeneratedAt.IsZero() {
		pdf.MultiCell(0, 4.5, doc.GeneratedAt.UTC().Format("January 2, 2006"), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if len(doc.Thumbnail) > 0 {
		if err := placeThumbnail(pdf, doc.Thumbnail); err != nil {
			return err
		}
	}

	for _, section := range doc.Sections {
		if heading := strings.TrimSpace(section.Heading); heading != "" {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 7, tr(heading), "", "L", false)
			pdf.Ln(1)
		}
		body := strings.TrimSpace(section.Body)
		if body == "" {
			continue
		}
		pdf.SetFont("Helvetica", "", 11)
		for _, paragraph := range splitParagraphs(body) {
			pdf.MultiCell(0, bodyLineHeight, tr(paragraph), "", "L", false)
			pdf.Ln(2)
		}
		pdf.Ln(2)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func placeThumbnail(pdf *gofpdf.Fpdf, image []byte) error {
	imageType := detectImageType(image)
	if imageType == "" {
		// Unknown image data is skipped rather than failing the report.
		return nil
	}
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	pdf.RegisterImageOptionsReader("thumbnail", opts, bytes.NewReader(image))
	if pdf.Err() {
		return fmt.Errorf("render pdf: thumbnail: %w", pdf.Error())
	}
	x := (210.0 - thumbnailWidth) / 2
	pdf.ImageOptions("thumbnail", x, pdf.GetY(), thumbnailWidth, thumbnailHeight, true, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("render pdf: thumbnail: %w", pdf.Error())
	}
	pdf.Ln(4)
	return nil
}

func detectImageType(data []byte) string {
	switch {
	case len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "JPG"
	case len(data) > 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "PNG"
	case len(data) > 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))):
		return "GIF"
	default:
		return ""
	}
}

func splitParagraphs(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, paragraph := range raw {
		if trimmed := strings.TrimSpace(paragraph); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
