package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// QueueService computes the pending-ticket listing a representative may pick
// from. Visibility is keyed off the rep role: first-line reps see L1 work plus
// fresh intake with no tier recorded, L2 and L3 reps see exactly their tier,
// and roles outside the ladder see everything.
type QueueService struct {
	queue   repository.QueueRepository
	tickets repository.TicketRepository
	logger  *zap.Logger
}

// QueueDependencies bundles collaborators for the queue service.
type QueueDependencies struct {
	QueueRepo  repository.QueueRepository
	TicketRepo repository.TicketRepository
	Logger     *zap.Logger
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{queue: deps.QueueRepo, tickets: deps.TicketRepo, logger: logger}
}

// EligibleQuery scopes a queue listing.
type EligibleQuery struct {
	VendorID string
	Role     domain.RepRole
	Channel  *domain.Channel
	Limit    int
}

// ListEligible returns queue entries the given role may claim, newest first.
func (s *QueueService) ListEligible(ctx context.Context, query EligibleQuery) ([]domain.QueueEntry, error) {
	filter := repository.QueueFilter{
		Channel: query.Channel,
		Limit:   query.Limit,
	}
	if query.VendorID != "" {
		vendorID := query.VendorID
		filter.VendorID = &vendorID
	}
	if tier, scoped := query.Role.VisibleTier(); scoped {
		filter.Tier = &tier
		// Fresh intake carries no tier yet; only the first line picks it up.
		filter.IncludeUntiered = tier == domain.TierL1
	}

	entries, err := s.queue.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	return entries, nil
}

// ListEligibleTickets resolves eligible queue entries to their full tickets,
// dropping entries whose ticket vanished underneath them.
func (s *QueueService) ListEligibleTickets(ctx context.Context, query EligibleQuery) ([]domain.Ticket, error) {
	entries, err := s.ListEligible(ctx, query)
	if err != nil {
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(entries))
	for _, entry := range entries {
		ticket, err := s.tickets.GetByID(ctx, entry.TicketID)
		if err != nil {
			s.logger.Warn("queue entry references missing ticket",
				zap.String("ticket_id", entry.TicketID), zap.Error(err))
			continue
		}
		if ticket.IsAssigned() || !ticket.IsOpen() {
			// Stale projection; drop the entry so it stops surfacing.
			if err := s.queue.DeleteByTicket(ctx, entry.TicketID); err != nil {
				s.logger.Warn("stale queue entry removal failed",
					zap.String("ticket_id", entry.TicketID), zap.Error(err))
			}
			continue
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}
