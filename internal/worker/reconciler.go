package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/repository"
)

// QueueReconciler periodically re-queues open unassigned tickets whose queue
// entry went missing, e.g. when intake crashed between writes or an entry was
// dropped as stale. The sweep is idempotent: inserting an entry that already
// exists just refreshes it.
type QueueReconciler struct {
	tickets  repository.TicketRepository
	queue    repository.QueueRepository
	interval time.Duration
	logger   *zap.Logger
}

// NewQueueReconciler constructs the reconciler.
func NewQueueReconciler(tickets repository.TicketRepository, queue repository.QueueRepository, interval time.Duration, logger *zap.Logger) *QueueReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueReconciler{tickets: tickets, queue: queue, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *QueueReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Warn("queue reconciliation sweep failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("queue reconciliation re-queued tickets", zap.Int("count", n))
			}
		}
	}
}

// Sweep performs one reconciliation pass and returns how many tickets were
// re-queued.
func (r *QueueReconciler) Sweep(ctx context.Context) (int, error) {
	tickets, err := r.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Unassigned: true,
		OpenOnly:   true,
		Statuses: []domain.TicketStatus{
			domain.TicketStatusWaitingForAgent,
			domain.TicketStatusEscalated,
			domain.TicketStatusReopened,
		},
		Limit: 500,
	})
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, ticket := range tickets {
		exists, err := r.queue.ExistsForTicket(ctx, ticket.ID)
		if err != nil {
			r.logger.Warn("reconcile: queue lookup failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		entry := &domain.QueueEntry{
			TicketID:       ticket.ID,
			VendorID:       ticket.VendorID,
			Channel:        ticket.Channel,
			Tier:           ticket.Tier,
			PriorityWeight: ticket.Priority.Weight(),
		}
		if err := r.queue.Insert(ctx, entry); err != nil {
			r.logger.Warn("reconcile: re-queue failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		requeued++
	}
	return requeued, nil
}
