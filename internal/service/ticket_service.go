package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// TicketService owns the ticket lifecycle: creation, intake, claiming,
// reassignment and status transitions.
type TicketService struct {
	tickets       repository.TicketRepository
	queue         repository.QueueRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	history       repository.TicketHistoryRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	QueueRepo        repository.QueueRepository
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	HistoryRepo      repository.TicketHistoryRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		queue:         deps.QueueRepo,
		conversations: deps.ConversationRepo,
		messages:      deps.MessageRepo,
		history:       deps.HistoryRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateInput describes direct ticket creation.
type CreateInput struct {
	CustomerID string
	VendorID   string
	Channel    domain.Channel
	Priority   domain.TicketPriority
	Subject    string
}

// Create opens a new ticket with no side effects beyond persistence.
func (s *TicketService) Create(ctx context.Context, input CreateInput) (*domain.Ticket, error) {
	if input.CustomerID == "" {
		return nil, apperrors.NewValidationError("customer id required", nil)
	}
	ticket := &domain.Ticket{
		CustomerID: input.CustomerID,
		VendorID:   input.VendorID,
		Channel:    input.Channel,
		Priority:   input.Priority,
		Status:     domain.TicketStatusCreated,
		Tier:       domain.TierL1,
		Subject:    strings.TrimSpace(input.Subject),
	}
	if ticket.Channel == "" {
		ticket.Channel = domain.ChannelChat
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishTicketCreated(ctx, ticket)
	return ticket, nil
}

// IntakeInput carries the customer-submitted intake form.
type IntakeInput struct {
	CustomerID       string
	VendorID         string
	Description      string
	Category         string
	Severity         string
	Urgency          string
	PreferredContact string
}

// IntakeResult reports everything the intake sequence produced.
type IntakeResult struct {
	Ticket       *domain.Ticket
	Conversation *domain.Conversation
	FirstMessage *domain.Message
	QueueEntry   *domain.QueueEntry
}

// CreateFromIntake derives priority and channel from the intake form, creates
// the ticket ready for pickup and seeds its conversation. The ticket and queue
// entry are written first so a crash mid-sequence leaves the ticket visible to
// the queue router; the reconciliation sweep re-queues any ticket that lost
// its entry.
func (s *TicketService) CreateFromIntake(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}
	if input.CustomerID == "" {
		return nil, apperrors.NewValidationError("customer id required", nil)
	}

	priority := DerivePriority(input.Severity, input.Urgency)
	channel := ChannelForContact(input.PreferredContact)

	ticket := &domain.Ticket{
		CustomerID:  input.CustomerID,
		VendorID:    input.VendorID,
		Channel:     channel,
		Priority:    priority,
		Status:      domain.TicketStatusWaitingForAgent,
		Tier:        domain.TierL1,
		Subject:     subjectFromDescription(input.Description),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Severity:    input.Severity,
		Urgency:     input.Urgency,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	entry := &domain.QueueEntry{
		TicketID:       ticket.ID,
		VendorID:       ticket.VendorID,
		Channel:        ticket.Channel,
		Tier:           ticket.Tier,
		PriorityWeight: ticket.Priority.Weight(),
	}
	if err := s.queue.Insert(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	conv := &domain.Conversation{TicketID: ticket.ID, Channel: ticket.Channel}
	if err := s.conversations.Create(ctx, conv); err != nil {
		// Ticket and queue entry are durable; the conversation is recreated
		// lazily on first append.
		s.logger.Warn("intake: conversation create failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		s.publishTicketCreated(ctx, ticket)
		return &IntakeResult{Ticket: ticket, QueueEntry: entry}, nil
	}

	customerID := ticket.CustomerID
	first := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       &customerID,
		SenderKind:     domain.SenderCustomer,
		Content:        ticket.Description,
	}
	if err := s.messages.Append(ctx, first); err != nil {
		s.logger.Warn("intake: first message append failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		first = nil
	}

	s.publishTicketCreated(ctx, ticket)
	return &IntakeResult{
		Ticket:       ticket,
		Conversation: conv,
		FirstMessage: first,
		QueueEntry:   entry,
	}, nil
}

// Assign claims the ticket for a representative. Legal only while no rep holds
// it; the claim is a conditional single-row update so racing reps resolve to
// exactly one winner.
func (s *TicketService) Assign(ctx context.Context, ticketID, repID string) (*domain.Ticket, error) {
	claimed, err := s.tickets.AssignIfUnassigned(ctx, ticketID, repID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !claimed {
		// The conditional update misses for unknown tickets, closed tickets
		// and lost races; a follow-up read tells them apart.
		existing, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		if existing.Status == domain.TicketStatusClosed {
			return nil, apperrors.NewInvalidTransition("cannot claim a closed ticket",
				map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewAlreadyAssigned(ticketID)
	}

	if err := s.queue.DeleteByTicket(ctx, ticketID); err != nil {
		s.logger.Warn("assign: queue entry removal failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordChange(ctx, domain.SenderRep, &repID, ticketID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_rep_id": nil},
		map[string]any{"assigned_rep_id": repID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		VendorID: ticket.VendorID,
		Actor:    repActor(repID),
		Payload:  events.TicketAssignedPayload{RepID: repID, Tier: ticket.Tier},
	})
	return ticket, nil
}

// Reassign hands the ticket to another representative.
func (s *TicketService) Reassign(ctx context.Context, ticketID, newRepID string) (*domain.Ticket, error) {
	before, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.tickets.Reassign(ctx, ticketID, newRepID); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordChange(ctx, domain.SenderRep, &newRepID, ticketID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_rep_id": before.AssignedRepID},
		map[string]any{"assigned_rep_id": newRepID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticketID,
		VendorID: ticket.VendorID,
		Actor:    repActor(newRepID),
		Payload:  events.TicketAssignedPayload{RepID: newRepID, Tier: ticket.Tier},
	})
	return ticket, nil
}

// UpdateStatus performs a generic status transition. Transitions into resolved
// and closed are permitted from any open state; entering them from a state
// other than the expected predecessors is allowed but audited. Assignment and
// escalation states have dedicated operations and are rejected here.
func (s *TicketService) UpdateStatus(ctx context.Context, actorKind domain.SenderKind, actorID *string, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	decision := classifyTransition(ticket.Status, newStatus)
	if !decision.allowed {
		return nil, apperrors.NewInvalidTransition("invalid status transition", map[string]any{
			"ticket_id": ticketID,
			"from":      ticket.Status,
			"to":        newStatus,
		})
	}
	if decision.skipsExpectedStates {
		s.logger.Warn("status transition skips expected intermediate states",
			zap.String("ticket_id", ticketID),
			zap.String("from", string(ticket.Status)),
			zap.String("to", string(newStatus)))
	}

	var resolvedAt, closedAt *time.Time
	now := s.now()
	switch newStatus {
	case domain.TicketStatusResolved:
		resolvedAt = &now
	case domain.TicketStatusClosed:
		closedAt = &now
	}

	if err := s.tickets.UpdateStatus(ctx, ticketID, newStatus, resolvedAt, closedAt); err != nil {
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	ticket, err = s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	newValue := map[string]any{"status": newStatus}
	if decision.skipsExpectedStates {
		newValue["skipped_expected_states"] = true
	}
	s.recordChange(ctx, actorKind, actorID, ticketID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus}, newValue)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		VendorID: ticket.VendorID,
		Actor:    events.Actor{Kind: actorKind, RepID: actorID},
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
	})
	return ticket, nil
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AppendMessage adds one transcript entry to the ticket's latest conversation,
// creating the conversation when none exists yet.
func (s *TicketService) AppendMessage(ctx context.Context, ticketID string, senderKind domain.SenderKind, senderID *string, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	conv, err := s.conversations.GetLatestByTicket(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		conv = &domain.Conversation{TicketID: ticketID, Channel: ticket.Channel}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderKind:     senderKind,
		Content:        strings.TrimSpace(content),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageAppended,
		TicketID: ticketID,
		VendorID: ticket.VendorID,
		Actor:    events.Actor{Kind: senderKind},
		Payload: events.MessageAppendedPayload{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderKind:     senderKind,
			ContentPreview: contentPreview(msg.Content, 120),
		},
	})
	return msg, nil
}

// Transcript returns the messages of the ticket's latest conversation.
func (s *TicketService) Transcript(ctx context.Context, ticketID string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.conversations.GetLatestByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("conversation", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	msgs, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return conv, msgs, nil
}

// ListHistory returns audit entries for the ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// DerivePriority applies the intake rule table: critical severity or immediate
// urgency always wins, minor+low is the only path to low priority.
func DerivePriority(severity, urgency string) domain.TicketPriority {
	severity = strings.ToLower(strings.TrimSpace(severity))
	urgency = strings.ToLower(strings.TrimSpace(urgency))
	switch {
	case severity == "critical" || urgency == "immediate":
		return domain.TicketPriorityUrgent
	case severity == "major" || urgency == "high":
		return domain.TicketPriorityHigh
	case severity == "minor" && urgency == "low":
		return domain.TicketPriorityLow
	default:
		return domain.TicketPriorityMedium
	}
}

// ChannelForContact maps a preferred-contact value to a channel. Unknown
// values default to chat.
func ChannelForContact(contact string) domain.Channel {
	switch domain.Channel(strings.ToLower(strings.TrimSpace(contact))) {
	case domain.ChannelCall:
		return domain.ChannelCall
	case domain.ChannelEmail:
		return domain.ChannelEmail
	case domain.ChannelDocs:
		return domain.ChannelDocs
	default:
		return domain.ChannelChat
	}
}

// transitionDecision reports whether a transition is legal and whether it
// jumps past the states normally visited first.
type transitionDecision struct {
	allowed             bool
	skipsExpectedStates bool
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusCreated:          {domain.TicketStatusIntakeInProgress, domain.TicketStatusWaitingForAgent},
	domain.TicketStatusIntakeInProgress: {domain.TicketStatusWaitingForAgent},
	domain.TicketStatusWaitingForAgent:  {},
	domain.TicketStatusAssigned:         {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress:       {},
	domain.TicketStatusReassigned:       {domain.TicketStatusInProgress},
	domain.TicketStatusEscalated:        {},
	domain.TicketStatusResolved:         {},
	domain.TicketStatusClosed:           {domain.TicketStatusReopened},
	domain.TicketStatusReopened:         {domain.TicketStatusWaitingForAgent, domain.TicketStatusInProgress},
}

// expectedResolvePredecessors are the states a ticket normally resolves or
// closes from; anything else is permitted but flagged for audit review.
var expectedResolvePredecessors = map[domain.TicketStatus]struct{}{
	domain.TicketStatusAssigned:   {},
	domain.TicketStatusInProgress: {},
	domain.TicketStatusReassigned: {},
	domain.TicketStatusResolved:   {},
}

func classifyTransition(current, next domain.TicketStatus) transitionDecision {
	if current == next {
		return transitionDecision{}
	}
	switch next {
	case domain.TicketStatusResolved, domain.TicketStatusClosed:
		if current == domain.TicketStatusClosed {
			return transitionDecision{}
		}
		_, expected := expectedResolvePredecessors[current]
		return transitionDecision{allowed: true, skipsExpectedStates: !expected}
	case domain.TicketStatusAssigned, domain.TicketStatusEscalated, domain.TicketStatusReassigned:
		// Dedicated operations own these states.
		return transitionDecision{}
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return transitionDecision{allowed: true}
		}
	}
	return transitionDecision{}
}

func subjectFromDescription(description string) string {
	description = strings.TrimSpace(description)
	const max = 80
	if len(description) <= max {
		return description
	}
	return description[:max-3] + "..."
}

func contentPreview(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	if max <= 3 {
		return content[:max]
	}
	return content[:max-3] + "..."
}

func (s *TicketService) publishTicketCreated(ctx context.Context, ticket *domain.Ticket) {
	customerID := ticket.CustomerID
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		VendorID: ticket.VendorID,
		Actor:    events.Actor{Kind: domain.SenderCustomer, CustomerID: &customerID},
		Payload: events.TicketCreatedPayload{
			Channel:  ticket.Channel,
			Priority: ticket.Priority,
			Tier:     ticket.Tier,
			Subject:  ticket.Subject,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) recordChange(ctx context.Context, kind domain.SenderKind, actorID *string, ticketID string, changeType domain.ChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByKind: kind,
		ChangedByID:   actorID,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history record failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func repActor(repID string) events.Actor {
	return events.Actor{Kind: domain.SenderRep, RepID: &repID}
}
