package domain

import "time"

// QueueEntry is an ephemeral projection of an unassigned ticket used for
// representative-facing routing. Entries never outlive their ticket.
type QueueEntry struct {
	ID             string
	TicketID       string
	VendorID       string
	Channel        Channel
	Tier           SupportTier
	PriorityWeight int
	EnqueuedAt     time.Time
}
