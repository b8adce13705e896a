package fetcher

import (
	"context"

	"github.com/DanHUMassMed/sumtube/internal/pipeline"
	"github.com/DanHUMassMed/sumtube/internal/services/youtube"
)

// Source adapts the YouTube client to the pipeline content contract.
func Source(client *youtube.Client) pipeline.ContentSource {
	return sourceAdapter{client: client}
}

type sourceAdapter struct {
	client *youtube.Client
}

func (a sourceAdapter) Fetch(ctx context.Context, videoID string) (pipeline.Content, error) {
	content, err := a.client.Fetch(ctx, videoID)
	if err != nil {
		return pipeline.Content{}, err
	}
	return pipeline.Content{
		Title:      content.Title,
		Transcript: content.Transcript,
		Thumbnail:  content.Thumbnail,
	}, nil
}
