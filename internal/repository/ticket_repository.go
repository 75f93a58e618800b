package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

const ticketColumns = `id, customer_id, vendor_id, channel, priority, status, tier,
               assigned_rep_id, subject, description, category, severity, urgency,
               escalated_from, escalated_from_tier, escalated_at,
               created_at, updated_at, resolved_at, closed_at`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID  *string
	VendorID    *string
	RepID       *string
	Channel     *domain.Channel
	Tier        *domain.SupportTier
	Statuses    []domain.TicketStatus
	Unassigned  bool
	OpenOnly    bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence. Structural mutations are
// single-statement updates so concurrent sessions cannot interleave partial
// writes on one ticket.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)

	// AssignIfUnassigned claims the ticket for repID only when no rep holds it
	// and the ticket is not closed. Returns false without error when another
	// rep won the race or the ticket cannot be claimed.
	AssignIfUnassigned(ctx context.Context, id, repID string) (bool, error)

	// Reassign replaces the current assignee and marks the ticket reassigned.
	Reassign(ctx context.Context, id, newRepID string) error

	// UpdateStatus sets the status and optional resolution/closure stamps.
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error

	// Escalate bumps the tier, clears the assignee and records lineage in one
	// statement. Returns false when the ticket is already past fromTier.
	Escalate(ctx context.Context, id string, fromTier, toTier domain.SupportTier, fromRepID string) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, vendor_id, channel, priority, status, tier,
            assigned_rep_id, subject, description, category, severity, urgency)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.VendorID,
		ticket.Channel,
		ticket.Priority,
		ticket.Status,
		ticket.Tier,
		ticket.AssignedRepID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Severity,
		ticket.Urgency,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) AssignIfUnassigned(ctx context.Context, id, repID string) (bool, error) {
	const query = `
        UPDATE tickets SET status=$2, assigned_rep_id=$3, updated_at=NOW()
        WHERE id=$1 AND assigned_rep_id IS NULL AND status <> $4`
	cmd, err := r.pool.Exec(ctx, query, id, domain.TicketStatusAssigned, repID, domain.TicketStatusClosed)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Reassign(ctx context.Context, id, newRepID string) error {
	const query = `
        UPDATE tickets SET status=$2, assigned_rep_id=$3, updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, domain.TicketStatusReassigned, newRepID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error {
	const query = `
        UPDATE tickets SET status=$2,
            resolved_at=COALESCE($3, resolved_at),
            closed_at=COALESCE($4, closed_at),
            updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, status, resolvedAt, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Escalate(ctx context.Context, id string, fromTier, toTier domain.SupportTier, fromRepID string) (bool, error) {
	// escalated_from_tier reads the pre-update tier value.
	const query = `
        UPDATE tickets SET status=$2, tier=$3, assigned_rep_id=NULL,
            escalated_from=$4, escalated_from_tier=tier, escalated_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND (tier=$5 OR (tier IS NULL AND $5='L1'))`
	cmd, err := r.pool.Exec(ctx, query, id, domain.TicketStatusEscalated, toTier, fromRepID, fromTier)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		clauses = append(clauses, fmt.Sprintf("vendor_id=$%d", len(args)))
	}
	if filter.RepID != nil {
		args = append(args, *filter.RepID)
		clauses = append(clauses, fmt.Sprintf("assigned_rep_id=$%d", len(args)))
	}
	if filter.Channel != nil {
		args = append(args, *filter.Channel)
		clauses = append(clauses, fmt.Sprintf("channel=$%d", len(args)))
	}
	if filter.Tier != nil {
		args = append(args, *filter.Tier)
		clauses = append(clauses, fmt.Sprintf("tier=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_rep_id IS NULL")
	}
	if filter.OpenOnly {
		args = append(args, domain.TicketStatusClosed)
		clauses = append(clauses, fmt.Sprintf("status <> $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.VendorID,
		&ticket.Channel,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Tier,
		&ticket.AssignedRepID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Severity,
		&ticket.Urgency,
		&ticket.EscalatedFrom,
		&ticket.EscalatedFromTier,
		&ticket.EscalatedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	)
}
