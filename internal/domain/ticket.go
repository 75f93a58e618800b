package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated          TicketStatus = "created"
	TicketStatusIntakeInProgress TicketStatus = "intake_in_progress"
	TicketStatusWaitingForAgent  TicketStatus = "waiting_for_agent"
	TicketStatusAssigned         TicketStatus = "assigned"
	TicketStatusInProgress       TicketStatus = "in_progress"
	TicketStatusReassigned       TicketStatus = "reassigned"
	TicketStatusEscalated        TicketStatus = "escalated"
	TicketStatusResolved         TicketStatus = "resolved"
	TicketStatusClosed           TicketStatus = "closed"
	TicketStatusReopened         TicketStatus = "reopened"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Weight maps a priority to its numeric routing weight (urgent=4 ... low=1).
func (p TicketPriority) Weight() int {
	switch p {
	case TicketPriorityUrgent:
		return 4
	case TicketPriorityHigh:
		return 3
	case TicketPriorityMedium:
		return 2
	case TicketPriorityLow:
		return 1
	default:
		return 0
	}
}

// Channel identifies the interaction channel a ticket arrived through.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelCall  Channel = "call"
	ChannelEmail Channel = "email"
	ChannelDocs  Channel = "docs"
)

// SupportTier is the escalation rank of a ticket. Tiers only ever increase.
type SupportTier string

const (
	TierL1 SupportTier = "L1"
	TierL2 SupportTier = "L2"
	TierL3 SupportTier = "L3"
)

// Rank returns the ordinal position of the tier, 0 for unknown values.
func (t SupportTier) Rank() int {
	switch t {
	case TierL1:
		return 1
	case TierL2:
		return 2
	case TierL3:
		return 3
	default:
		return 0
	}
}

// Next returns the tier above t, or false when t is the top tier.
func (t SupportTier) Next() (SupportTier, bool) {
	switch t {
	case "", TierL1:
		return TierL2, true
	case TierL2:
		return TierL3, true
	default:
		return "", false
	}
}

// Ticket is the aggregate for customer issues.
type Ticket struct {
	ID            string
	CustomerID    string
	VendorID      string
	Channel       Channel
	Priority      TicketPriority
	Status        TicketStatus
	Tier          SupportTier
	AssignedRepID *string
	Subject       string
	Description   string
	Category      string
	Severity      string
	Urgency       string

	// Escalation lineage.
	EscalatedFrom     *string
	EscalatedFromTier *SupportTier
	EscalatedAt       *time.Time

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
}

// IsOpen reports whether the ticket is still actionable.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusClosed
}

// IsAssigned reports whether a representative currently holds the ticket.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedRepID != nil && *t.AssignedRepID != ""
}
