package dto

import (
	"time"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Channel  domain.Channel        `json:"channel"`
	Priority domain.TicketPriority `json:"priority"`
	Subject  string                `json:"subject"`
}

// IntakeRequest is the structured intake form.
type IntakeRequest struct {
	Description      string `json:"description"`
	Category         string `json:"category"`
	Severity         string `json:"severity"`
	Urgency          string `json:"urgency"`
	PreferredContact string `json:"preferred_contact"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	RepID string `json:"rep_id"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	VendorID      string                `json:"vendor_id,omitempty"`
	Channel       domain.Channel        `json:"channel"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	Tier          domain.SupportTier    `json:"tier"`
	AssignedRepID *string               `json:"assigned_rep_id"`
	Subject       string                `json:"subject"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description       string              `json:"description"`
	Category          string              `json:"category,omitempty"`
	Severity          string              `json:"severity,omitempty"`
	Urgency           string              `json:"urgency,omitempty"`
	EscalatedFrom     *string             `json:"escalated_from,omitempty"`
	EscalatedFromTier *domain.SupportTier `json:"escalated_from_tier,omitempty"`
	EscalatedAt       *time.Time          `json:"escalated_at,omitempty"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
	ClosedAt          *time.Time          `json:"closed_at,omitempty"`
}

// MessageResponse is one transcript entry.
type MessageResponse struct {
	ID         string            `json:"id"`
	SenderID   *string           `json:"sender_id"`
	SenderKind domain.SenderKind `json:"sender_kind"`
	Content    string            `json:"content"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TranscriptResponse bundles a conversation and its messages.
type TranscriptResponse struct {
	ConversationID string            `json:"conversation_id"`
	Channel        domain.Channel    `json:"channel"`
	Messages       []MessageResponse `json:"messages"`
}

// QueueEntryResponse is one claimable ticket in the router listing.
type QueueEntryResponse struct {
	TicketID       string             `json:"ticket_id"`
	Channel        domain.Channel     `json:"channel"`
	Tier           domain.SupportTier `json:"tier"`
	PriorityWeight int                `json:"priority_weight"`
	EnqueuedAt     time.Time          `json:"enqueued_at"`
}

// HistoryEntryResponse is one audit record.
type HistoryEntryResponse struct {
	ID            string            `json:"id"`
	ChangeType    domain.ChangeType `json:"change_type"`
	ChangedByKind domain.SenderKind `json:"changed_by_kind"`
	ChangedByID   *string           `json:"changed_by_id"`
	OldValue      map[string]any    `json:"old_value"`
	NewValue      map[string]any    `json:"new_value"`
	CreatedAt     time.Time         `json:"created_at"`
}
