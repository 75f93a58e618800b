package domain

import "time"

// SenderKind tags who produced a message so transcripts stay channel-agnostic.
type SenderKind string

const (
	SenderCustomer SenderKind = "customer"
	SenderRep      SenderKind = "rep"
	SenderAI       SenderKind = "ai"
	SenderSystem   SenderKind = "system"
)

// AgentKind distinguishes which kind of agent is serving a live session.
type AgentKind string

const (
	AgentAI    AgentKind = "ai"
	AgentHuman AgentKind = "human"
)

// Conversation is the persisted transcript container for one ticket
// channel-session. Messages are append-only.
type Conversation struct {
	ID        string
	TicketID  string
	Channel   Channel
	CreatedAt time.Time
}

// Message is one transcript entry. SenderID is empty for system and AI
// messages that have no resolvable author.
type Message struct {
	ID             string
	ConversationID string
	SenderID       *string
	SenderKind     SenderKind
	Content        string
	CreatedAt      time.Time
}
