package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/repository"
)

type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.Unassigned && ticket.AssignedRepID != nil {
			continue
		}
		if filter.OpenOnly && ticket.Status == domain.TicketStatusClosed {
			continue
		}
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				if ticket.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *ticket)
	}
	return out, nil
}

func (r *memTicketRepo) AssignIfUnassigned(_ context.Context, id, repID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.AssignedRepID != nil || ticket.Status == domain.TicketStatusClosed {
		return false, nil
	}
	ticket.AssignedRepID = &repID
	ticket.Status = domain.TicketStatusAssigned
	ticket.UpdatedAt = time.Now()
	return true, nil
}

func (r *memTicketRepo) Reassign(_ context.Context, id, newRepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.AssignedRepID = &newRepID
	ticket.Status = domain.TicketStatusReassigned
	return nil
}

func (r *memTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	if resolvedAt != nil {
		ticket.ResolvedAt = resolvedAt
	}
	if closedAt != nil {
		ticket.ClosedAt = closedAt
	}
	return nil
}

func (r *memTicketRepo) Escalate(_ context.Context, id string, fromTier, toTier domain.SupportTier, fromRepID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return false, nil
	}
	current := ticket.Tier
	if current == "" {
		current = domain.TierL1
	}
	if current != fromTier {
		return false, nil
	}
	prev := ticket.Tier
	ticket.Tier = toTier
	ticket.Status = domain.TicketStatusEscalated
	ticket.AssignedRepID = nil
	ticket.EscalatedFrom = &fromRepID
	ticket.EscalatedFromTier = &prev
	now := time.Now()
	ticket.EscalatedAt = &now
	return true, nil
}

type memQueueRepo struct {
	mu      sync.Mutex
	entries map[string]domain.QueueEntry
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{entries: make(map[string]domain.QueueEntry)}
}

func (r *memQueueRepo) Insert(_ context.Context, entry *domain.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = "queue-" + entry.TicketID
	}
	entry.EnqueuedAt = time.Now()
	r.entries[entry.TicketID] = *entry
	return nil
}

func (r *memQueueRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, ticketID)
	return nil
}

func (r *memQueueRepo) List(_ context.Context, filter repository.QueueFilter) ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueueEntry
	for _, entry := range r.entries {
		if filter.VendorID != nil && entry.VendorID != *filter.VendorID {
			continue
		}
		if filter.Tier != nil {
			if entry.Tier != *filter.Tier && !(filter.IncludeUntiered && entry.Tier == "") {
				continue
			}
		}
		if filter.Channel != nil && entry.Channel != *filter.Channel {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *memQueueRepo) ExistsForTicket(_ context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[ticketID]
	return ok, nil
}

type memConversationRepo struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]*domain.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{conversations: make(map[string]*domain.Conversation)}
}

func (r *memConversationRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	conv.ID = fmt.Sprintf("conv-%d", r.seq)
	conv.CreatedAt = time.Now()
	clone := *conv
	r.conversations[conv.ID] = &clone
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *conv
	return &clone, nil
}

func (r *memConversationRepo) GetLatestByTicket(_ context.Context, ticketID string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Conversation
	for _, conv := range r.conversations {
		if conv.TicketID != ticketID {
			continue
		}
		if latest == nil || conv.CreatedAt.After(latest.CreatedAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *latest
	return &clone, nil
}

func (r *memConversationRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conversation
	for _, conv := range r.conversations {
		if conv.TicketID == ticketID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	seq      int
	messages []domain.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (r *memMessageRepo) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.seq)
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *memMessageRepo) all() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

type memHistoryRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.TicketHistory
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (r *memHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("hist-%d", r.seq)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memRepRepo struct {
	mu   sync.Mutex
	seq  int
	reps map[string]*domain.Representative
}

func newMemRepRepo() *memRepRepo {
	return &memRepRepo{reps: make(map[string]*domain.Representative)}
}

func (r *memRepRepo) Create(_ context.Context, rep *domain.Representative) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if rep.ID == "" {
		rep.ID = fmt.Sprintf("rep-%d", r.seq)
	}
	clone := *rep
	r.reps[rep.ID] = &clone
	return nil
}

func (r *memRepRepo) GetByID(_ context.Context, id string) (*domain.Representative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reps[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *rep
	return &clone, nil
}

func (r *memRepRepo) GetByEmail(_ context.Context, email string) (*domain.Representative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reps {
		if rep.Email == email {
			clone := *rep
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
