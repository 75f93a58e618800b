package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// ConversationRepository manages transcript containers.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	// GetLatestByTicket returns the most recent conversation for the ticket,
	// or pgx.ErrNoRows when none exists yet.
	GetLatestByTicket(ctx context.Context, ticketID string) (*domain.Conversation, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Conversation, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository builds repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	const query = `
        INSERT INTO conversations (ticket_id, channel)
        VALUES ($1,$2)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, conv.TicketID, conv.Channel).
		Scan(&conv.ID, &conv.CreatedAt)
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	const query = `SELECT id, ticket_id, channel, created_at FROM conversations WHERE id=$1`
	var conv domain.Conversation
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&conv.ID, &conv.TicketID, &conv.Channel, &conv.CreatedAt); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetLatestByTicket(ctx context.Context, ticketID string) (*domain.Conversation, error) {
	const query = `
        SELECT id, ticket_id, channel, created_at FROM conversations
        WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT 1`
	var conv domain.Conversation
	if err := r.pool.QueryRow(ctx, query, ticketID).
		Scan(&conv.ID, &conv.TicketID, &conv.Channel, &conv.CreatedAt); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Conversation, error) {
	const query = `
        SELECT id, ticket_id, channel, created_at FROM conversations
        WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.TicketID, &conv.Channel, &conv.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}
