package events

import (
	"time"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReassigned    EventType = "ticket_reassigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventMessageAppended     EventType = "message_appended"
	EventSessionStarted      EventType = "session_started"
	EventSessionEnded        EventType = "session_ended"
	EventSuggestionServed    EventType = "suggestion_served"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind       domain.SenderKind `json:"kind"`
	CustomerID *string           `json:"customer_id,omitempty"`
	RepID      *string           `json:"rep_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	VendorID  string      `json:"vendor_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Channel  domain.Channel        `json:"channel"`
	Priority domain.TicketPriority `json:"priority"`
	Tier     domain.SupportTier    `json:"tier"`
	Subject  string                `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	RepID string             `json:"rep_id"`
	Tier  domain.SupportTier `json:"tier"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromTier domain.SupportTier `json:"from_tier"`
	ToTier   domain.SupportTier `json:"to_tier"`
	FromRep  string             `json:"from_rep"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	SenderKind     domain.SenderKind `json:"sender_kind"`
	ContentPreview string            `json:"content_preview"`
}

// SessionLifecyclePayload covers session started/ended events.
type SessionLifecyclePayload struct {
	SessionID string           `json:"session_id"`
	Channel   domain.Channel   `json:"channel"`
	AgentKind domain.AgentKind `json:"agent_kind"`
	Reason    string           `json:"reason,omitempty"`
}

// SuggestionServedPayload payload.
type SuggestionServedPayload struct {
	SessionID string `json:"session_id"`
	Preview   string `json:"preview"`
}
