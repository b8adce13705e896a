// Package fetcher implements the first workflow stage: it resolves the video
// ID for a queued URL, creates the item's work directory, and downloads the
// transcript, title, and thumbnail through the checkpointed extraction step so
// an interrupted fetch never re-downloads content that already landed on disk.
package fetcher
