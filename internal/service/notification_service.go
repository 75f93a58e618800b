package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/events"
)

// Notification is one outbound alert for a rep or customer surface.
type Notification struct {
	TicketID string
	VendorID string
	Kind     events.EventType
	Body     string
}

// NotificationService turns domain events into notifications and hands them
// to the delivery worker. Delivery is best effort; a full channel drops the
// notification rather than stalling the publisher.
type NotificationService struct {
	queue  chan Notification
	logger *zap.Logger
}

// NewNotificationService constructs the service with a bounded queue.
func NewNotificationService(buffer int, logger *zap.Logger) *NotificationService {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		queue:  make(chan Notification, buffer),
		logger: logger,
	}
}

// Queue exposes the channel the delivery worker drains.
func (s *NotificationService) Queue() <-chan Notification {
	return s.queue
}

// RegisterWith subscribes the service to the events worth notifying on.
func (s *NotificationService) RegisterWith(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketAssigned,
		events.EventTicketReassigned,
		events.EventTicketEscalated,
		events.EventTicketStatusChanged,
		events.EventSessionStarted,
		events.EventSessionEnded,
	} {
		dispatcher.Subscribe(eventType, s.handle)
	}
}

func (s *NotificationService) handle(ctx context.Context, event events.Event) error {
	notification := Notification{
		TicketID: event.TicketID,
		VendorID: event.VendorID,
		Kind:     event.Type,
		Body:     renderNotification(event),
	}
	select {
	case s.queue <- notification:
	default:
		s.logger.Warn("notification queue full, dropping",
			zap.String("ticket_id", event.TicketID),
			zap.String("type", string(event.Type)))
	}
	return nil
}

func renderNotification(event events.Event) string {
	switch payload := event.Payload.(type) {
	case events.TicketAssignedPayload:
		return fmt.Sprintf("ticket %s assigned to %s", event.TicketID, payload.RepID)
	case events.TicketEscalatedPayload:
		return fmt.Sprintf("ticket %s escalated %s -> %s", event.TicketID, payload.FromTier, payload.ToTier)
	case events.TicketStatusChangedPayload:
		return fmt.Sprintf("ticket %s moved %s -> %s", event.TicketID, payload.OldStatus, payload.NewStatus)
	case events.SessionLifecyclePayload:
		return fmt.Sprintf("ticket %s session %s (%s)", event.TicketID, event.Type, payload.SessionID)
	default:
		return fmt.Sprintf("ticket %s: %s", event.TicketID, event.Type)
	}
}
