package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/config"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/observability"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// TicketAccess is the slice of the ticket service the coordinator needs.
type TicketAccess interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	TranscriptAppender
}

// ProviderFactory builds the provider set for one session. Implementations
// pick concrete speech, telephony and assistant backends per ticket.
type ProviderFactory func(ticket *domain.Ticket, agentKind domain.AgentKind) (Providers, error)

// TicketIntake carries intake details for sessions opened before any ticket
// exists, e.g. a customer tapping "call us" straight from the help surface.
type TicketIntake struct {
	CustomerID       string
	VendorID         string
	Description      string
	Category         string
	Severity         string
	Urgency          string
	PreferredContact string
}

// TicketOpener creates a ticket from in-session intake details and returns it.
type TicketOpener func(ctx context.Context, intake TicketIntake) (*domain.Ticket, error)

// Coordinator owns every live session in this process. Each ticket holds at
// most one live session at a time, enforced through the shared registry.
type Coordinator struct {
	tickets    TicketAccess
	openTicket TicketOpener
	registry   Registry
	providers  ProviderFactory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	cfg        config.SessionConfig
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	byTicket map[string]string
}

// CoordinatorDependencies bundles collaborators for the coordinator.
type CoordinatorDependencies struct {
	Tickets    TicketAccess
	OpenTicket TicketOpener
	Registry   Registry
	Providers  ProviderFactory
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Config     config.SessionConfig
	Logger     *zap.Logger
}

// NewCoordinator constructs the coordinator.
func NewCoordinator(deps CoordinatorDependencies) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	return &Coordinator{
		tickets:    deps.Tickets,
		openTicket: deps.OpenTicket,
		registry:   registry,
		providers:  deps.Providers,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		cfg:        deps.Config,
		logger:     logger,
		sessions:   make(map[string]*Session),
		byTicket:   make(map[string]string),
	}
}

// StartInput describes a session start request.
type StartInput struct {
	// TicketID names an existing ticket. Empty means open a fresh ticket from
	// Intake; the session keeps the created id.
	TicketID  string
	Intake    *TicketIntake
	AgentKind domain.AgentKind
	// RepID identifies the human rep for human-agent sessions.
	RepID *string
}

// StartSession opens a live session on the ticket, creating the ticket first
// when the request carries intake details instead of an id. Fails when the
// ticket is unknown or closed, or when another live session already holds it.
func (c *Coordinator) StartSession(ctx context.Context, input StartInput) (*Session, error) {
	ticket, err := c.resolveTicket(ctx, input)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewInvalidTransition("cannot open a session on a closed ticket",
			map[string]any{"ticket_id": ticket.ID})
	}
	agentKind := input.AgentKind
	if agentKind == "" {
		agentKind = domain.AgentAI
	}
	if agentKind == domain.AgentHuman && (input.RepID == nil || *input.RepID == "") {
		return nil, apperrors.NewValidationError("rep id required for human-agent sessions", nil)
	}

	sessionID := uuid.NewString()
	acquired, err := c.registry.Acquire(ctx, ticket.ID, sessionID, c.cfg.SlotTTL())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !acquired {
		return nil, apperrors.NewConflict("ticket already has a live session",
			map[string]any{"ticket_id": ticket.ID})
	}

	providers, err := c.providers(ticket, agentKind)
	if err != nil {
		_ = c.registry.Release(ctx, ticket.ID, sessionID)
		return nil, apperrors.NewProviderError("provider setup failed", err)
	}

	var feeder *SuggestionFeeder
	if agentKind == domain.AgentHuman && providers.Assistant != nil {
		feeder = NewSuggestionFeeder(sessionID, ticket.CustomerID, providers.Assistant, FeederConfig{
			Debounce:    c.cfg.SuggestionDebounce(),
			MinNewWords: c.cfg.SuggestionMinNewWords,
			WindowWords: c.cfg.SuggestionWindowWords,
			MaxRetained: c.cfg.SuggestionMaxRetained,
		}, c.suggestionServed(sessionID, ticket), c.logger)
	}

	sess := NewSession(sessionID, ticket.ID, ticket.Channel, agentKind, input.RepID,
		providers, c.tickets, feeder, Hooks{OnEnded: c.sessionEnded(ticket)},
		Config{ConnectTimeout: c.cfg.ConnectTimeout()}, c.logger)

	c.mu.Lock()
	c.sessions[sessionID] = sess
	c.byTicket[ticket.ID] = sessionID
	c.mu.Unlock()

	sess.Start()
	c.metrics.RecordSessionEvent("started")
	c.publish(ctx, events.Event{
		Type:     events.EventSessionStarted,
		TicketID: ticket.ID,
		VendorID: ticket.VendorID,
		Actor:    actorFor(agentKind, input.RepID),
		Payload: events.SessionLifecyclePayload{
			SessionID: sessionID,
			Channel:   ticket.Channel,
			AgentKind: agentKind,
		},
	})
	return sess, nil
}

func (c *Coordinator) resolveTicket(ctx context.Context, input StartInput) (*domain.Ticket, error) {
	if input.TicketID != "" {
		return c.tickets.GetTicket(ctx, input.TicketID)
	}
	if input.Intake == nil {
		return nil, apperrors.NewValidationError("ticket_id or intake details required", nil)
	}
	if c.openTicket == nil {
		return nil, apperrors.NewValidationError("in-session ticket intake is not configured", nil)
	}
	ticket, err := c.openTicket(ctx, *input.Intake)
	if err != nil {
		return nil, err
	}
	c.logger.Info("ticket opened from session intake",
		zap.String("ticket_id", ticket.ID), zap.String("customer_id", ticket.CustomerID))
	return ticket, nil
}

// Get returns the live session, if any.
func (c *Coordinator) Get(sessionID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	return sess, ok
}

// GetByTicket returns the ticket's live session, if any.
func (c *Coordinator) GetByTicket(ticketID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID, ok := c.byTicket[ticketID]
	if !ok {
		return nil, false
	}
	sess, ok := c.sessions[sessionID]
	return sess, ok
}

// HangUp ends the session. Hanging up a session that already ended, or was
// never known, is a no-op.
func (c *Coordinator) HangUp(sessionID string) {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("hangup for unknown session", zap.String("session_id", sessionID))
		return
	}
	sess.HangUp()
}

// Shutdown hangs up every live session and waits for teardown, bounded by ctx.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	live := make([]*Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		live = append(live, sess)
	}
	c.mu.Unlock()

	for _, sess := range live {
		sess.HangUp()
	}
	for _, sess := range live {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) sessionEnded(ticket *domain.Ticket) func(sessionID string, reason EndReason) {
	return func(sessionID string, reason EndReason) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.registry.Release(ctx, ticket.ID, sessionID); err != nil {
			c.logger.Warn("session slot release failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}

		c.mu.Lock()
		sess := c.sessions[sessionID]
		delete(c.sessions, sessionID)
		if c.byTicket[ticket.ID] == sessionID {
			delete(c.byTicket, ticket.ID)
		}
		c.mu.Unlock()

		c.metrics.RecordSessionEvent("ended_" + string(reason))
		payload := events.SessionLifecyclePayload{
			SessionID: sessionID,
			Channel:   ticket.Channel,
			Reason:    string(reason),
		}
		if sess != nil {
			payload.AgentKind = sess.AgentKind
		}
		c.publish(ctx, events.Event{
			Type:     events.EventSessionEnded,
			TicketID: ticket.ID,
			VendorID: ticket.VendorID,
			Payload:  payload,
		})
	}
}

func (c *Coordinator) suggestionServed(sessionID string, ticket *domain.Ticket) func(Suggestion) {
	return func(suggestion Suggestion) {
		c.metrics.RecordSessionEvent("suggestion_served")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.publish(ctx, events.Event{
			Type:     events.EventSuggestionServed,
			TicketID: ticket.ID,
			VendorID: ticket.VendorID,
			Payload: events.SuggestionServedPayload{
				SessionID: sessionID,
				Preview:   previewText(suggestion.Text, 80),
			},
		})
	}
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = c.dispatcher.Publish(ctx, event)
}

func actorFor(agentKind domain.AgentKind, repID *string) events.Actor {
	if agentKind == domain.AgentHuman && repID != nil {
		return events.Actor{Kind: domain.SenderRep, RepID: repID}
	}
	return events.Actor{Kind: domain.SenderAI}
}

func previewText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}
