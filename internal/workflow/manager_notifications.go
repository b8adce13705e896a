package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/notifications"
	"github.com/DanHUMassMed/sumtube/internal/queue"
)

func (m *Manager) onItemCompleted(ctx context.Context, item *queue.Item) {
	if m.notifier == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = strings.TrimSpace(item.VideoID)
	}
	if err := m.notifier.Publish(ctx, notifications.EventReportCompleted, notifications.Payload{
		"title":       title,
		"report_path": item.ReportPath,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not send completion notification")
		} else {
			logger.Debug("report completion notification failed", logging.Error(err))
		}
	}
}
