package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

type ticketServiceFixture struct {
	svc        *TicketService
	tickets    *memTicketRepo
	queue      *memQueueRepo
	convs      *memConversationRepo
	msgs       *memMessageRepo
	history    *memHistoryRepo
	dispatcher *capturingDispatcher
}

func newTicketServiceFixture() *ticketServiceFixture {
	f := &ticketServiceFixture{
		tickets:    newMemTicketRepo(),
		queue:      newMemQueueRepo(),
		convs:      newMemConversationRepo(),
		msgs:       newMemMessageRepo(),
		history:    newMemHistoryRepo(),
		dispatcher: &capturingDispatcher{},
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:       f.tickets,
		QueueRepo:        f.queue,
		ConversationRepo: f.convs,
		MessageRepo:      f.msgs,
		HistoryRepo:      f.history,
		Dispatcher:       f.dispatcher,
		Logger:           zap.NewNop(),
	})
	return f
}

func TestDerivePriority(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		urgency  string
		want     domain.TicketPriority
	}{
		{"critical severity wins", "critical", "low", domain.TicketPriorityUrgent},
		{"immediate urgency wins", "minor", "immediate", domain.TicketPriorityUrgent},
		{"major severity", "major", "low", domain.TicketPriorityHigh},
		{"high urgency", "minor", "high", domain.TicketPriorityHigh},
		{"minor and low", "minor", "low", domain.TicketPriorityLow},
		{"unknown pair defaults to medium", "moderate", "normal", domain.TicketPriorityMedium},
		{"empty defaults to medium", "", "", domain.TicketPriorityMedium},
		{"case insensitive", "CRITICAL", "", domain.TicketPriorityUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePriority(tt.severity, tt.urgency); got != tt.want {
				t.Fatalf("DerivePriority(%q, %q) = %q, want %q", tt.severity, tt.urgency, got, tt.want)
			}
		})
	}
}

func TestChannelForContact(t *testing.T) {
	tests := []struct {
		contact string
		want    domain.Channel
	}{
		{"chat", domain.ChannelChat},
		{"call", domain.ChannelCall},
		{"email", domain.ChannelEmail},
		{"docs", domain.ChannelDocs},
		{"carrier-pigeon", domain.ChannelChat},
		{"", domain.ChannelChat},
	}
	for _, tt := range tests {
		if got := ChannelForContact(tt.contact); got != tt.want {
			t.Errorf("ChannelForContact(%q) = %q, want %q", tt.contact, got, tt.want)
		}
	}
}

func TestCreateFromIntake(t *testing.T) {
	f := newTicketServiceFixture()
	ctx := context.Background()

	result, err := f.svc.CreateFromIntake(ctx, IntakeInput{
		CustomerID:       "cust-1",
		VendorID:         "vendor-1",
		Description:      "The dashboard shows stale numbers since this morning",
		Category:         "reporting",
		Severity:         "major",
		Urgency:          "low",
		PreferredContact: "call",
	})
	if err != nil {
		t.Fatalf("CreateFromIntake: %v", err)
	}

	ticket := result.Ticket
	if ticket.Status != domain.TicketStatusWaitingForAgent {
		t.Errorf("status = %q, want waiting_for_agent", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityHigh {
		t.Errorf("priority = %q, want high", ticket.Priority)
	}
	if ticket.Channel != domain.ChannelCall {
		t.Errorf("channel = %q, want call", ticket.Channel)
	}
	if ticket.Tier != domain.TierL1 {
		t.Errorf("tier = %q, want L1", ticket.Tier)
	}

	if exists, _ := f.queue.ExistsForTicket(ctx, ticket.ID); !exists {
		t.Error("expected queue entry for new ticket")
	}
	if result.QueueEntry.PriorityWeight != 3 {
		t.Errorf("priority weight = %d, want 3", result.QueueEntry.PriorityWeight)
	}

	if result.Conversation == nil {
		t.Fatal("expected conversation")
	}
	msgs := f.msgs.all()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].SenderKind != domain.SenderCustomer || msgs[0].Content != ticket.Description {
		t.Errorf("first message = %+v, want customer description", msgs[0])
	}

	if got := f.dispatcher.byType(events.EventTicketCreated); len(got) != 1 {
		t.Errorf("ticket_created events = %d, want 1", len(got))
	}
}

func TestCreateFromIntakeValidation(t *testing.T) {
	f := newTicketServiceFixture()
	_, err := f.svc.CreateFromIntake(context.Background(), IntakeInput{CustomerID: "cust-1"})
	if apperrors.CodeOf(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestAssignClaimsExactlyOnce(t *testing.T) {
	f := newTicketServiceFixture()
	ctx := context.Background()

	result, err := f.svc.CreateFromIntake(ctx, IntakeInput{
		CustomerID:  "cust-1",
		Description: "cannot log in",
	})
	if err != nil {
		t.Fatalf("CreateFromIntake: %v", err)
	}
	ticketID := result.Ticket.ID

	ticket, err := f.svc.Assign(ctx, ticketID, "rep-1")
	if err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned {
		t.Errorf("status = %q, want assigned", ticket.Status)
	}
	if ticket.AssignedRepID == nil || *ticket.AssignedRepID != "rep-1" {
		t.Errorf("assigned_rep_id = %v, want rep-1", ticket.AssignedRepID)
	}
	if exists, _ := f.queue.ExistsForTicket(ctx, ticketID); exists {
		t.Error("queue entry should be removed after claim")
	}

	_, err = f.svc.Assign(ctx, ticketID, "rep-2")
	if !apperrors.IsAlreadyAssigned(err) {
		t.Fatalf("second Assign: expected ALREADY_ASSIGNED, got %v", err)
	}

	got, _ := f.svc.GetTicket(ctx, ticketID)
	if *got.AssignedRepID != "rep-1" {
		t.Errorf("loser overwrote winner: assigned to %q", *got.AssignedRepID)
	}
}

func TestAssignRejectsClosedTicket(t *testing.T) {
	f := newTicketServiceFixture()
	ctx := context.Background()

	result, err := f.svc.CreateFromIntake(ctx, IntakeInput{
		CustomerID:  "cust-1",
		Description: "stale report after the abandoned chat",
	})
	if err != nil {
		t.Fatalf("CreateFromIntake: %v", err)
	}
	ticketID := result.Ticket.ID

	// Closed without ever being assigned, e.g. the customer resolved it
	// themselves before pickup.
	if err := f.tickets.UpdateStatus(ctx, ticketID, domain.TicketStatusClosed, nil, nil); err != nil {
		t.Fatalf("close ticket: %v", err)
	}

	_, err = f.svc.Assign(ctx, ticketID, "rep-1")
	if apperrors.CodeOf(err) != "INVALID_TRANSITION" {
		t.Fatalf("claiming a closed ticket: expected INVALID_TRANSITION, got %v", err)
	}

	got, _ := f.svc.GetTicket(ctx, ticketID)
	if got.Status != domain.TicketStatusClosed || got.AssignedRepID != nil {
		t.Errorf("closed ticket mutated by claim: %+v", got)
	}
}

func TestAssignUnknownTicket(t *testing.T) {
	f := newTicketServiceFixture()
	_, err := f.svc.Assign(context.Background(), "no-such-ticket", "rep-1")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.TicketStatus
		to       domain.TicketStatus
		wantCode string
	}{
		{"created to intake", domain.TicketStatusCreated, domain.TicketStatusIntakeInProgress, ""},
		{"intake to waiting", domain.TicketStatusIntakeInProgress, domain.TicketStatusWaitingForAgent, ""},
		{"assigned to in_progress", domain.TicketStatusAssigned, domain.TicketStatusInProgress, ""},
		{"in_progress to resolved", domain.TicketStatusInProgress, domain.TicketStatusResolved, ""},
		{"resolved to closed", domain.TicketStatusResolved, domain.TicketStatusClosed, ""},
		{"closed to reopened", domain.TicketStatusClosed, domain.TicketStatusReopened, ""},
		{"waiting straight to resolved is permitted", domain.TicketStatusWaitingForAgent, domain.TicketStatusResolved, ""},
		{"created straight to closed is permitted", domain.TicketStatusCreated, domain.TicketStatusClosed, ""},
		{"closed to resolved rejected", domain.TicketStatusClosed, domain.TicketStatusResolved, "INVALID_TRANSITION"},
		{"waiting to in_progress rejected", domain.TicketStatusWaitingForAgent, domain.TicketStatusInProgress, "INVALID_TRANSITION"},
		{"assigned via generic update rejected", domain.TicketStatusWaitingForAgent, domain.TicketStatusAssigned, "INVALID_TRANSITION"},
		{"escalated via generic update rejected", domain.TicketStatusInProgress, domain.TicketStatusEscalated, "INVALID_TRANSITION"},
		{"same status rejected", domain.TicketStatusInProgress, domain.TicketStatusInProgress, "INVALID_TRANSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketServiceFixture()
			ctx := context.Background()

			seed := &domain.Ticket{CustomerID: "cust-1", Status: tt.from, Tier: domain.TierL1}
			if err := f.tickets.Create(ctx, seed); err != nil {
				t.Fatalf("seed: %v", err)
			}

			ticket, err := f.svc.UpdateStatus(ctx, domain.SenderRep, nil, seed.ID, tt.to)
			if tt.wantCode != "" {
				if apperrors.CodeOf(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
			if ticket.Status != tt.to {
				t.Errorf("status = %q, want %q", ticket.Status, tt.to)
			}
			if tt.to == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
				t.Error("resolved_at not stamped")
			}
			if tt.to == domain.TicketStatusClosed && ticket.ClosedAt == nil {
				t.Error("closed_at not stamped")
			}
		})
	}
}

func TestUpdateStatusAuditsSkippedStates(t *testing.T) {
	f := newTicketServiceFixture()
	ctx := context.Background()

	seed := &domain.Ticket{CustomerID: "cust-1", Status: domain.TicketStatusWaitingForAgent}
	if err := f.tickets.Create(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, domain.SenderRep, nil, seed.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	entries, _ := f.history.ListByTicket(ctx, seed.ID, 10, 0)
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if skipped, _ := entries[0].NewValue["skipped_expected_states"].(bool); !skipped {
		t.Errorf("expected skipped_expected_states flag in %+v", entries[0].NewValue)
	}
}

func TestAppendMessageCreatesConversationLazily(t *testing.T) {
	f := newTicketServiceFixture()
	ctx := context.Background()

	ticket, err := f.svc.Create(ctx, CreateInput{CustomerID: "cust-1", Subject: "help"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	repID := "rep-9"
	msg, err := f.svc.AppendMessage(ctx, ticket.ID, domain.SenderRep, &repID, "on it")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	conv, msgs, err := f.svc.Transcript(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if conv.ID != msg.ConversationID {
		t.Errorf("conversation mismatch: %q vs %q", conv.ID, msg.ConversationID)
	}
	if len(msgs) != 1 || msgs[0].Content != "on it" {
		t.Errorf("transcript = %+v, want single rep message", msgs)
	}
}
