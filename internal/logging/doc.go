// Package logging builds slog loggers with sumtube's console and JSON handlers
// and provides the standardized structured field helpers shared across the
// pipeline.
package logging
