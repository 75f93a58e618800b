package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/service"
)

// NotificationWorker drains the notification queue and delivers alerts. The
// current delivery target is the structured log stream; push and email
// integrations hang off this worker later.
type NotificationWorker struct {
	notifications *service.NotificationService
	logger        *zap.Logger
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{notifications: notifications, logger: logger}
}

// Run delivers notifications until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notification := <-w.notifications.Queue():
			w.logger.Info("notification",
				zap.String("ticket_id", notification.TicketID),
				zap.String("vendor_id", notification.VendorID),
				zap.String("kind", string(notification.Kind)),
				zap.String("body", notification.Body),
			)
		}
	}
}
