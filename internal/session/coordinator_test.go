package session

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/support-orchestrator/internal/config"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/observability"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

type memTicketAccess struct {
	memTranscript
	tickets map[string]*domain.Ticket
}

func newMemTicketAccess(tickets ...*domain.Ticket) *memTicketAccess {
	access := &memTicketAccess{tickets: make(map[string]*domain.Ticket)}
	for _, ticket := range tickets {
		access.tickets[ticket.ID] = ticket
	}
	return access
}

func (m *memTicketAccess) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func newTestCoordinator(access TicketAccess) *Coordinator {
	return NewCoordinator(CoordinatorDependencies{
		Tickets:  access,
		Registry: NewMemoryRegistry(),
		Providers: func(*domain.Ticket, domain.AgentKind) (Providers, error) {
			return LoopbackProviders(), nil
		},
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Config:     config.SessionConfig{},
	})
}

func openTicket(id string) *domain.Ticket {
	return &domain.Ticket{
		ID:         id,
		CustomerID: "cust-1",
		VendorID:   "vendor-1",
		Channel:    domain.ChannelChat,
		Status:     domain.TicketStatusInProgress,
		Tier:       domain.TierL1,
	}
}

func TestOneLiveSessionPerTicket(t *testing.T) {
	access := newMemTicketAccess(openTicket("t1"))
	coordinator := newTestCoordinator(access)
	ctx := context.Background()

	first, err := coordinator.StartSession(ctx, StartInput{TicketID: "t1"})
	if err != nil {
		t.Fatalf("first StartSession: %v", err)
	}
	defer coordinator.HangUp(first.ID)

	_, err = coordinator.StartSession(ctx, StartInput{TicketID: "t1"})
	if apperrors.CodeOf(err) != "CONFLICT" {
		t.Fatalf("second StartSession: expected CONFLICT, got %v", err)
	}
}

func TestHangUpFreesTheTicketSlot(t *testing.T) {
	access := newMemTicketAccess(openTicket("t1"))
	coordinator := newTestCoordinator(access)
	ctx := context.Background()

	first, err := coordinator.StartSession(ctx, StartInput{TicketID: "t1"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	coordinator.HangUp(first.ID)
	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}

	second, err := coordinator.StartSession(ctx, StartInput{TicketID: "t1"})
	if err != nil {
		t.Fatalf("StartSession after hangup: %v", err)
	}
	coordinator.HangUp(second.ID)
}

func TestCoordinatorHangUpUnknownSessionIsNoop(t *testing.T) {
	coordinator := newTestCoordinator(newMemTicketAccess())
	coordinator.HangUp("never-existed")
}

func TestStartSessionRejectsClosedTicket(t *testing.T) {
	closed := openTicket("t1")
	closed.Status = domain.TicketStatusClosed
	coordinator := newTestCoordinator(newMemTicketAccess(closed))

	_, err := coordinator.StartSession(context.Background(), StartInput{TicketID: "t1"})
	if apperrors.CodeOf(err) != "INVALID_TRANSITION" {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestStartSessionRejectsUnknownTicket(t *testing.T) {
	coordinator := newTestCoordinator(newMemTicketAccess())
	_, err := coordinator.StartSession(context.Background(), StartInput{TicketID: "missing"})
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestStartSessionOpensTicketFromIntake(t *testing.T) {
	access := newMemTicketAccess()
	coordinator := NewCoordinator(CoordinatorDependencies{
		Tickets: access,
		OpenTicket: func(_ context.Context, intake TicketIntake) (*domain.Ticket, error) {
			ticket := &domain.Ticket{
				ID:         "t-new",
				CustomerID: intake.CustomerID,
				VendorID:   intake.VendorID,
				Channel:    domain.ChannelChat,
				Status:     domain.TicketStatusWaitingForAgent,
				Tier:       domain.TierL1,
			}
			access.tickets[ticket.ID] = ticket
			return ticket, nil
		},
		Registry: NewMemoryRegistry(),
		Providers: func(*domain.Ticket, domain.AgentKind) (Providers, error) {
			return LoopbackProviders(), nil
		},
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Config:     config.SessionConfig{},
	})

	sess, err := coordinator.StartSession(context.Background(), StartInput{
		Intake: &TicketIntake{
			CustomerID:  "cust-1",
			VendorID:    "vendor-1",
			Description: "invoice total looks wrong",
		},
	})
	if err != nil {
		t.Fatalf("StartSession with intake: %v", err)
	}
	defer coordinator.HangUp(sess.ID)

	// The session keeps the created ticket's id so callers can deep-link.
	if sess.TicketID != "t-new" {
		t.Errorf("session ticket id = %q, want the created ticket", sess.TicketID)
	}
	if got, ok := coordinator.GetByTicket("t-new"); !ok || got.ID != sess.ID {
		t.Error("created ticket not linked to its session")
	}
}

func TestStartSessionWithoutTicketOrIntakeFails(t *testing.T) {
	coordinator := newTestCoordinator(newMemTicketAccess())
	_, err := coordinator.StartSession(context.Background(), StartInput{})
	if apperrors.CodeOf(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestHumanSessionRequiresRep(t *testing.T) {
	coordinator := newTestCoordinator(newMemTicketAccess(openTicket("t1")))
	_, err := coordinator.StartSession(context.Background(), StartInput{
		TicketID:  "t1",
		AgentKind: domain.AgentHuman,
	})
	if apperrors.CodeOf(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}
