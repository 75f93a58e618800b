package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// QueueFilter narrows the eligible queue listing.
type QueueFilter struct {
	VendorID *string
	Tier     *domain.SupportTier
	// IncludeUntiered also returns entries with no tier recorded; used for
	// first-line reps who pick up fresh intake.
	IncludeUntiered bool
	Channel         *domain.Channel
	Limit           int
}

// QueueRepository owns the queue-entry projection of unassigned tickets.
type QueueRepository interface {
	Insert(ctx context.Context, entry *domain.QueueEntry) error
	DeleteByTicket(ctx context.Context, ticketID string) error
	List(ctx context.Context, filter QueueFilter) ([]domain.QueueEntry, error)
	// ExistsForTicket supports the reconciliation sweep.
	ExistsForTicket(ctx context.Context, ticketID string) (bool, error)
}

type queueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository builds repository.
func NewQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &queueRepository{pool: pool}
}

func (r *queueRepository) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	const query = `
        INSERT INTO queue_entries (ticket_id, vendor_id, channel, tier, priority_weight)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id) DO UPDATE SET tier=EXCLUDED.tier,
            priority_weight=EXCLUDED.priority_weight, enqueued_at=NOW()
        RETURNING id, enqueued_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.VendorID,
		entry.Channel,
		entry.Tier,
		entry.PriorityWeight,
	).Scan(&entry.ID, &entry.EnqueuedAt)
}

func (r *queueRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	const query = `DELETE FROM queue_entries WHERE ticket_id=$1`
	_, err := r.pool.Exec(ctx, query, ticketID)
	return err
}

func (r *queueRepository) List(ctx context.Context, filter QueueFilter) ([]domain.QueueEntry, error) {
	base := `SELECT id, ticket_id, vendor_id, channel, tier, priority_weight, enqueued_at
             FROM queue_entries`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		clauses = append(clauses, fmt.Sprintf("vendor_id=$%d", len(args)))
	}
	if filter.Tier != nil {
		args = append(args, *filter.Tier)
		if filter.IncludeUntiered {
			clauses = append(clauses, fmt.Sprintf("(tier=$%d OR tier IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("tier=$%d", len(args)))
		}
	}
	if filter.Channel != nil {
		args = append(args, *filter.Channel)
		clauses = append(clauses, fmt.Sprintf("channel=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY enqueued_at DESC LIMIT %d`,
		base, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.QueueEntry
	for rows.Next() {
		var entry domain.QueueEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.VendorID,
			&entry.Channel,
			&entry.Tier,
			&entry.PriorityWeight,
			&entry.EnqueuedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *queueRepository) ExistsForTicket(ctx context.Context, ticketID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM queue_entries WHERE ticket_id=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
