package dto

import (
	"time"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// StartSessionRequest payload. Either ticket_id names an existing ticket or
// the intake fields describe the issue and a fresh ticket is opened for the
// session.
type StartSessionRequest struct {
	TicketID  string           `json:"ticket_id"`
	AgentKind domain.AgentKind `json:"agent_kind"`

	Description      string `json:"description"`
	Category         string `json:"category"`
	Severity         string `json:"severity"`
	Urgency          string `json:"urgency"`
	PreferredContact string `json:"preferred_contact"`
}

// SayRequest delivers typed customer input into a live session.
type SayRequest struct {
	Content string `json:"content"`
}

// SessionResponse describes one live session.
type SessionResponse struct {
	ID        string           `json:"id"`
	TicketID  string           `json:"ticket_id"`
	Channel   domain.Channel   `json:"channel"`
	AgentKind domain.AgentKind `json:"agent_kind"`
	State     string           `json:"state"`
	LastError string           `json:"last_error,omitempty"`
}

// SuggestionResponse is one advisory hint.
type SuggestionResponse struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	SupportingMemories []string  `json:"supporting_memories,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
