package stage

import (
	"context"
	"log/slog"

	"github.com/DanHUMassMed/sumtube/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a stage-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
