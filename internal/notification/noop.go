package notification

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/domain/notification"
	"github.com/ledgerline/ledgerline/internal/logger"
)

// NoopDispatcher logs notifications instead of sending them. Used in local
// deployments without a notification service.
type NoopDispatcher struct {
	logger *logger.Logger
}

func NewNoopDispatcher(log *logger.Logger) *NoopDispatcher {
	return &NoopDispatcher{logger: log}
}

func (d *NoopDispatcher) Dispatch(ctx context.Context, recipient string, template notification.Template, payload map[string]any) error {
	d.logger.Infow("notification suppressed (noop dispatcher)",
		"recipient", recipient,
		"template", template,
		"payload", payload)
	return nil
}
