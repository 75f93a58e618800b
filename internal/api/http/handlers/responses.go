package handlers

import (
	"github.com/spec-kit/support-orchestrator/internal/api/dto"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/session"
)

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		CustomerID:    ticket.CustomerID,
		VendorID:      ticket.VendorID,
		Channel:       ticket.Channel,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		Tier:          ticket.Tier,
		AssignedRepID: ticket.AssignedRepID,
		Subject:       ticket.Subject,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary:     ticketSummary(ticket),
		Description:       ticket.Description,
		Category:          ticket.Category,
		Severity:          ticket.Severity,
		Urgency:           ticket.Urgency,
		EscalatedFrom:     ticket.EscalatedFrom,
		EscalatedFromTier: ticket.EscalatedFromTier,
		EscalatedAt:       ticket.EscalatedAt,
		ResolvedAt:        ticket.ResolvedAt,
		ClosedAt:          ticket.ClosedAt,
	}
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderKind: msg.SenderKind,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

func transcriptResponse(conv *domain.Conversation, msgs []domain.Message) dto.TranscriptResponse {
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return dto.TranscriptResponse{
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		Messages:       items,
	}
}

func queueEntryResponse(entry *domain.QueueEntry) dto.QueueEntryResponse {
	return dto.QueueEntryResponse{
		TicketID:       entry.TicketID,
		Channel:        entry.Channel,
		Tier:           entry.Tier,
		PriorityWeight: entry.PriorityWeight,
		EnqueuedAt:     entry.EnqueuedAt,
	}
}

func historyEntryResponse(entry *domain.TicketHistory) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:            entry.ID,
		ChangeType:    entry.ChangeType,
		ChangedByKind: entry.ChangedByKind,
		ChangedByID:   entry.ChangedByID,
		OldValue:      entry.OldValue,
		NewValue:      entry.NewValue,
		CreatedAt:     entry.CreatedAt,
	}
}

func sessionResponse(sess *session.Session) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:        sess.ID,
		TicketID:  sess.TicketID,
		Channel:   sess.Channel,
		AgentKind: sess.AgentKind,
		State:     string(sess.State()),
	}
	if err := sess.Err(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func suggestionResponse(suggestion session.Suggestion) dto.SuggestionResponse {
	return dto.SuggestionResponse{
		ID:                 suggestion.ID,
		Text:               suggestion.Text,
		SupportingMemories: suggestion.SupportingMemories,
		CreatedAt:          suggestion.CreatedAt,
	}
}

func customerResponse(customer *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:       customer.ID,
		VendorID: customer.VendorID,
		Name:     customer.Name,
		Email:    customer.Email,
	}
}

func repResponse(rep *domain.Representative) dto.RepResponse {
	return dto.RepResponse{
		ID:       rep.ID,
		VendorID: rep.VendorID,
		Name:     rep.Name,
		Email:    rep.Email,
		Role:     rep.Role,
		Active:   rep.Active,
	}
}
