package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/events"
)

// Producer streams domain events to a Kafka topic. Best-effort: failures are
// logged and never block the publishing service. When brokers are not
// configured every method is a no-op.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates the producer. Empty brokers or topic yields a no-op instance.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{logger: logger}
	}
	return &Producer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// RegisterWith subscribes the producer to every event type on the dispatcher.
func (p *Producer) RegisterWith(dispatcher events.Dispatcher) {
	if p.writer == nil || dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketReassigned,
		events.EventTicketEscalated,
		events.EventMessageAppended,
		events.EventSessionStarted,
		events.EventSessionEnded,
		events.EventSuggestionServed,
	} {
		dispatcher.Subscribe(eventType, p.handle)
	}
}

func (p *Producer) handle(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("kafka: marshal event", zap.Error(err))
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafka: write event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

// Close closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
