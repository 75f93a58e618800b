package domain

import "time"

// ChangeType classifies audit history entries.
type ChangeType string

const (
	ChangeTypeStatus   ChangeType = "status"
	ChangeTypeTier     ChangeType = "tier"
	ChangeTypeAssignee ChangeType = "assignee"
	ChangeTypePriority ChangeType = "priority"
)

// TicketHistory records one audited change on a ticket.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByKind SenderKind
	ChangedByID   *string
	ChangeType    ChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
