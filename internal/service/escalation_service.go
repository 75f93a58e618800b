package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// EscalationService moves tickets up the support-tier ladder. Tiers only ever
// increase: L1 to L2 to L3, never back down.
type EscalationService struct {
	tickets       repository.TicketRepository
	queue         repository.QueueRepository
	reps          repository.RepRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	history       repository.TicketHistoryRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	TicketRepo       repository.TicketRepository
	QueueRepo        repository.QueueRepository
	RepRepo          repository.RepRepository
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	HistoryRepo      repository.TicketHistoryRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		tickets:       deps.TicketRepo,
		queue:         deps.QueueRepo,
		reps:          deps.RepRepo,
		conversations: deps.ConversationRepo,
		messages:      deps.MessageRepo,
		history:       deps.HistoryRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// Escalate bumps the ticket one tier, releases the current assignee and
// re-queues the ticket at the new tier. At the top tier the ticket is left
// untouched and the caller gets ESCALATION_EXHAUSTED. The transcript note
// naming the escalating rep is best effort; its failure never unwinds the
// escalation itself.
func (s *EscalationService) Escalate(ctx context.Context, ticketID, fromRepID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	fromTier := ticket.Tier
	if fromTier == "" {
		fromTier = domain.TierL1
	}
	toTier, ok := fromTier.Next()
	if !ok {
		return nil, apperrors.NewEscalationExhausted(ticketID)
	}

	moved, err := s.tickets.Escalate(ctx, ticketID, fromTier, toTier, fromRepID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !moved {
		// Another session escalated first; the tier guard kept this one out.
		return nil, apperrors.NewConflict("ticket tier changed concurrently", map[string]any{
			"ticket_id": ticketID,
			"from_tier": fromTier,
		})
	}

	entry := &domain.QueueEntry{
		TicketID:       ticketID,
		VendorID:       ticket.VendorID,
		Channel:        ticket.Channel,
		Tier:           toTier,
		PriorityWeight: ticket.Priority.Weight(),
	}
	if err := s.queue.Insert(ctx, entry); err != nil {
		s.logger.Warn("escalate: queue re-insert failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}

	s.appendEscalationNote(ctx, ticketID, fromRepID, fromTier, toTier)

	s.recordChange(ctx, fromRepID, ticketID,
		map[string]any{"tier": fromTier, "assigned_rep_id": fromRepID},
		map[string]any{"tier": toTier, "assigned_rep_id": nil})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticketID,
		VendorID: ticket.VendorID,
		Actor:    repActor(fromRepID),
		Payload: events.TicketEscalatedPayload{
			FromTier: fromTier,
			ToTier:   toTier,
			FromRep:  fromRepID,
		},
	})

	updated, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return updated, nil
}

// appendEscalationNote writes a system line into the ticket conversation so
// the next rep sees who kicked the ticket upstairs.
func (s *EscalationService) appendEscalationNote(ctx context.Context, ticketID, fromRepID string, fromTier, toTier domain.SupportTier) {
	repName := fromRepID
	if s.reps != nil {
		if rep, err := s.reps.GetByID(ctx, fromRepID); err == nil {
			repName = rep.Name
		}
	}

	conv, err := s.conversations.GetLatestByTicket(ctx, ticketID)
	if err != nil {
		s.logger.Debug("escalate: no conversation for system note",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}

	note := &domain.Message{
		ConversationID: conv.ID,
		SenderKind:     domain.SenderSystem,
		Content:        fmt.Sprintf("Ticket escalated from %s to %s by %s", fromTier, toTier, repName),
	}
	if err := s.messages.Append(ctx, note); err != nil {
		s.logger.Warn("escalate: system note append failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *EscalationService) recordChange(ctx context.Context, repID, ticketID string, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByKind: domain.SenderRep,
		ChangedByID:   &repID,
		ChangeType:    domain.ChangeTypeTier,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history record failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *EscalationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
