package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/services"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractVideoID(tc.url)
			if err != nil {
				t.Fatalf("ExtractVideoID(%q) returned error: %v", tc.url, err)
			}
			if got != tc.want {
				t.Fatalf("ExtractVideoID(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}

	if _, err := ExtractVideoID("https://example.com/nothing-here"); err == nil {
		t.Fatal("expected error for non-YouTube url")
	}
	if _, err := ExtractVideoID("   "); err == nil {
		t.Fatal("expected error for blank url")
	}
}

const captionListXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript_list>
  <track id="0" lang_code="de" name=""/>
  <track id="1" lang_code="en" name=""/>
</transcript_list>`

const captionBodyXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="2.1">Hello &amp; welcome</text>
  <text start="2.1" dur="3.0">to the show</text>
</transcript>`

func newCaptionServer(t *testing.T, listBody, trackBody string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			_, _ = w.Write([]byte(listBody))
			return
		}
		if r.URL.Query().Get("lang") == "" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(trackBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTranscriptJoinsEntriesAndUnescapes(t *testing.T) {
	server := newCaptionServer(t, captionListXML, captionBodyXML)
	client := NewClient(Config{Languages: []string{"en"}}, WithTimedTextBaseURL(server.URL))

	transcript, err := client.Transcript(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Transcript returned error: %v", err)
	}
	want := "Hello & welcome to the show"
	if string(transcript) != want {
		t.Fatalf("transcript = %q, want %q", transcript, want)
	}
}

func TestTranscriptPrefersConfiguredLanguage(t *testing.T) {
	var requestedLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			_, _ = w.Write([]byte(captionListXML))
			return
		}
		requestedLang = r.URL.Query().Get("lang")
		_, _ = w.Write([]byte(captionBodyXML))
	}))
	defer server.Close()

	client := NewClient(Config{Languages: []string{"de", "en"}}, WithTimedTextBaseURL(server.URL))
	if _, err := client.Transcript(context.Background(), "abc123"); err != nil {
		t.Fatalf("Transcript returned error: %v", err)
	}
	if requestedLang != "de" {
		t.Fatalf("requested lang = %q, want de", requestedLang)
	}
}

func TestTranscriptNoTracksIsNotFound(t *testing.T) {
	server := newCaptionServer(t, `<transcript_list></transcript_list>`, captionBodyXML)
	client := NewClient(Config{}, WithTimedTextBaseURL(server.URL))

	_, err := client.Transcript(context.Background(), "abc123")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchWithoutAPIKeyUsesVideoIDAsTitle(t *testing.T) {
	server := newCaptionServer(t, captionListXML, captionBodyXML)
	client := NewClient(Config{Languages: []string{"en"}}, WithTimedTextBaseURL(server.URL))

	content, err := client.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if content.Title != "abc123" {
		t.Fatalf("title = %q, want video id fallback", content.Title)
	}
	if len(content.Thumbnail) != 0 {
		t.Fatal("expected no thumbnail without an API key")
	}
	if !strings.Contains(string(content.Transcript), "welcome") {
		t.Fatalf("unexpected transcript %q", content.Transcript)
	}
}

func TestFetchWithAPIKeyFetchesSnippetAndThumbnail(t *testing.T) {
	captions := newCaptionServer(t, captionListXML, captionBodyXML)

	mux := http.NewServeMux()
	mux.HandleFunc("/thumb.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpegbytes"))
	})
	var dataServer *httptest.Server
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"snippet":{"title":"A Great Talk","thumbnails":{"medium":{"url":"` + dataServer.URL + `/thumb.jpg"}}}}]}`))
	})
	dataServer = httptest.NewServer(mux)
	defer dataServer.Close()

	client := NewClient(
		Config{APIKey: "test-key", BaseURL: dataServer.URL, Languages: []string{"en"}},
		WithTimedTextBaseURL(captions.URL),
	)

	content, err := client.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if content.Title != "A Great Talk" {
		t.Fatalf("title = %q", content.Title)
	}
	if string(content.Thumbnail) != "jpegbytes" {
		t.Fatalf("thumbnail = %q", content.Thumbnail)
	}
}

func TestSnippetUnknownVideoIsNotFound(t *testing.T) {
	dataServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer dataServer.Close()
	captions := newCaptionServer(t, captionListXML, captionBodyXML)

	client := NewClient(
		Config{APIKey: "test-key", BaseURL: dataServer.URL},
		WithTimedTextBaseURL(captions.URL),
	)
	_, err := client.Fetch(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRateLimitedMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{}, WithTimedTextBaseURL(server.URL))
	_, err := client.Transcript(context.Background(), "abc123")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
