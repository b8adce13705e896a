// Package youtube fetches video metadata, caption transcripts, and
// thumbnails from YouTube's Data API and timedtext endpoints.
package youtube
