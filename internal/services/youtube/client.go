package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/DanHUMassMed/sumtube/internal/services"
)

const (
	defaultDataAPIBaseURL    = "https://www.googleapis.com/youtube/v3"
	defaultTimedTextBaseURL  = "https://video.google.com/timedtext"
	defaultHTTPTimeout       = 30 * time.Second
	maxTranscriptBytes       = 64 << 20
	transcriptEntrySeparator = " "
)

var videoIDPattern = regexp.MustCompile(
	`(?:v=|/videos/|youtu\.be/|/v/|/e/|/watch\?v=|&v=|/embed/|` +
		`%2Fvideos%2F|embed%2F|youtu\.be%2F|%2Fv%2F|%2Fe%2F|youtube\.com/embed/|` +
		`youtube\.com/v/|youtube\.com/watch\?v=)([^#&?\n/]+)`,
)

// ExtractVideoID pulls the video identifier out of any of the common YouTube
// URL shapes. A bare identifier (no URL structure) is returned as-is.
func ExtractVideoID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errors.New("video url is required")
	}
	if match := videoIDPattern.FindStringSubmatch(trimmed); match != nil {
		return match[1], nil
	}
	if !strings.ContainsAny(trimmed, "/?&=.") {
		return trimmed, nil
	}
	return "", fmt.Errorf("could not extract video id from %q", trimmed)
}

// Config captures the runtime settings for the YouTube client.
type Config struct {
	APIKey         string
	BaseURL        string
	Languages      []string
	TimeoutSeconds int
}

// Content is the content-source result for one video: title, raw transcript,
// and thumbnail image bytes. Title falls back to the video id and Thumbnail
// stays empty when no Data API key is configured.
type Content struct {
	Title      string
	Transcript []byte
	Thumbnail  []byte
}

// Client fetches video metadata, caption transcripts, and thumbnails.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	timedTextURL string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimedTextBaseURL overrides the caption endpoint (used in tests).
func WithTimedTextBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.timedTextURL = trimmed
		}
	}
}

// NewClient constructs a YouTube client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Languages:      append([]string(nil), cfg.Languages...),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:   &http.Client{Timeout: timeout},
		timedTextURL: defaultTimedTextBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultDataAPIBaseURL
	}
	if len(client.cfg.Languages) == 0 {
		client.cfg.Languages = []string{"en"}
	}
	return client
}

// Fetch retrieves the title, transcript, and thumbnail for a video.
func (c *Client) Fetch(ctx context.Context, videoID string) (Content, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Content{}, errors.New("video id is required")
	}

	content := Content{Title: videoID}

	if c.cfg.APIKey != "" {
		title, thumbURL, err := c.fetchSnippet(ctx, videoID)
		if err != nil {
			return Content{}, err
		}
		if title != "" {
			content.Title = title
		}
		if thumbURL != "" {
			thumbnail, err := c.download(ctx, thumbURL)
			if err != nil {
				// The report renders without a thumbnail; the transcript is
				// what the run exists for.
				thumbnail = nil
			}
			content.Thumbnail = thumbnail
		}
	}

	transcript, err := c.Transcript(ctx, videoID)
	if err != nil {
		return Content{}, err
	}
	content.Transcript = transcript
	return content, nil
}

type snippetResponse struct {
	Items []struct {
		Snippet struct {
			Title      string `json:"title"`
			Thumbnails map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *Client) fetchSnippet(ctx context.Context, videoID string) (title, thumbnailURL string, err error) {
	endpoint := fmt.Sprintf("%s/videos?%s", c.cfg.BaseURL, url.Values{
		"part": {"snippet"},
		"id":   {videoID},
		"key":  {c.cfg.APIKey},
	}.Encode())

	body, err := c.get(ctx, endpoint, "youtube snippet")
	if err != nil {
		return "", "", err
	}

	var parsed snippetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("youtube snippet: decode response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return "", "", services.Wrap(services.ErrNotFound, "fetching", "video snippet", fmt.Sprintf("video %s not found", videoID), nil)
	}
	snippet := parsed.Items[0].Snippet
	if thumb, ok := snippet.Thumbnails["medium"]; ok {
		thumbnailURL = thumb.URL
	} else if thumb, ok := snippet.Thumbnails["default"]; ok {
		thumbnailURL = thumb.URL
	}
	return snippet.Title, thumbnailURL, nil
}

type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

type transcriptXML struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches the caption track that best matches the configured
// language preferences and joins its entries into one plain-text document.
func (c *Client) Transcript(ctx context.Context, videoID string) ([]byte, error) {
	lang, err := c.pickTrackLanguage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s?%s", c.timedTextURL, url.Values{
		"lang": {lang},
		"v":    {videoID},
	}.Encode())
	body, err := c.get(ctx, endpoint, "youtube transcript")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "fetching", "transcript", fmt.Sprintf("no %s transcript for video %s", lang, videoID), nil)
	}

	var parsed transcriptXML
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("youtube transcript: decode captions: %w", err)
	}

	parts := make([]string, 0, len(parsed.Texts))
	for _, entry := range parsed.Texts {
		text := strings.TrimSpace(html.UnescapeString(entry.Value))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "fetching", "transcript", fmt.Sprintf("empty transcript for video %s", videoID), nil)
	}
	return []byte(strings.Join(parts, transcriptEntrySeparator)), nil
}

func (c *Client) pickTrackLanguage(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s?%s", c.timedTextURL, url.Values{
		"type": {"list"},
		"v":    {videoID},
	}.Encode())
	body, err := c.get(ctx, endpoint, "youtube caption list")
	if err != nil {
		return "", err
	}

	var list trackList
	if len(body) > 0 {
		if err := xml.Unmarshal(body, &list); err != nil {
			return "", fmt.Errorf("youtube caption list: decode response: %w", err)
		}
	}
	if len(list.Tracks) == 0 {
		return "", services.Wrap(services.ErrNotFound, "fetching", "caption list", fmt.Sprintf("no caption tracks for video %s", videoID), nil)
	}

	available := make([]language.Tag, 0, len(list.Tracks))
	codes := make([]string, 0, len(list.Tracks))
	for _, track := range list.Tracks {
		tag, err := language.Parse(track.LangCode)
		if err != nil {
			continue
		}
		available = append(available, tag)
		codes = append(codes, track.LangCode)
	}
	if len(available) == 0 {
		return list.Tracks[0].LangCode, nil
	}

	preferred := make([]language.Tag, 0, len(c.cfg.Languages))
	for _, code := range c.cfg.Languages {
		if tag, err := language.Parse(code); err == nil {
			preferred = append(preferred, tag)
		}
	}
	if len(preferred) == 0 {
		return codes[0], nil
	}

	matcher := language.NewMatcher(available)
	_, index, confidence := matcher.Match(preferred...)
	if confidence == language.No {
		return codes[0], nil
	}
	return codes[index], nil
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL, "youtube thumbnail")
}

func (c *Client) get(ctx context.Context, endpoint, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "fetching", op, "request timed out", err)
		}
		return nil, services.Wrap(services.ErrTransient, "fetching", op, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetching", op, "read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "fetching", op, fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrRateLimited, "fetching", op, fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, services.Wrap(services.ErrTransient, "fetching", op, fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%s: http %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
