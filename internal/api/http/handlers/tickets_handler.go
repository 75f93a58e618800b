package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-orchestrator/internal/api/dto"
	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	"github.com/spec-kit/support-orchestrator/internal/service"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	escalations *service.EscalationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, escalations *service.EscalationService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, escalations: escalations}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Create(c.UserContext(), service.CreateInput{
		CustomerID: principal.Customer.ID,
		VendorID:   principal.VendorID,
		Channel:    req.Channel,
		Priority:   req.Priority,
		Subject:    req.Subject,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Intake POST /tickets/intake.
func (h *TicketsHandler) Intake(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	var req dto.IntakeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.tickets.CreateFromIntake(c.UserContext(), service.IntakeInput{
		CustomerID:       principal.Customer.ID,
		VendorID:         principal.VendorID,
		Description:      req.Description,
		Category:         req.Category,
		Severity:         req.Severity,
		Urgency:          req.Urgency,
		PreferredContact: req.PreferredContact,
	})
	if err != nil {
		return err
	}
	response := fiber.Map{"ticket": ticketDetail(result.Ticket)}
	if result.Conversation != nil {
		response["conversation_id"] = result.Conversation.ID
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": response})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseTicketQuery(c)
	switch {
	case principal.Customer != nil:
		customerID := principal.Customer.ID
		filter.CustomerID = &customerID
	case principal.Rep != nil:
		if principal.VendorID != "" {
			vendorID := principal.VendorID
			filter.VendorID = &vendorID
		}
		if c.QueryBool("mine", false) {
			repID := principal.Rep.ID
			filter.RepID = &repID
		}
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if err := authorizeTicketAccess(principal, ticket); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	actorKind, actorID := actorFromPrincipal(principal)
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), actorKind, actorID, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Assign POST /tickets/:id/assign. The caller claims the ticket.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Rep == nil {
		return apperrors.NewUnauthorized("representative required")
	}
	ticket, err := h.tickets.Assign(c.UserContext(), c.Params("id"), principal.Rep.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Reassign POST /tickets/:id/reassign.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil || req.RepID == "" {
		return apperrors.NewValidationError("rep_id required", nil)
	}
	ticket, err := h.tickets.Reassign(c.UserContext(), c.Params("id"), req.RepID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Rep == nil {
		return apperrors.NewUnauthorized("representative required")
	}
	ticket, err := h.escalations.Escalate(c.UserContext(), c.Params("id"), principal.Rep.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}
	actorKind, actorID := actorFromPrincipal(principal)
	msg, err := h.tickets.AppendMessage(c.UserContext(), c.Params("id"), actorKind, actorID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// Transcript GET /tickets/:id/transcript.
func (h *TicketsHandler) Transcript(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if err := authorizeTicketAccess(principal, ticket); err != nil {
		return err
	}
	conv, msgs, err := h.tickets.Transcript(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transcriptResponse(conv, msgs)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	entries, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, historyEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func authorizeTicketAccess(principal *auth.Principal, ticket *domain.Ticket) error {
	switch {
	case principal.Customer != nil:
		if ticket.CustomerID != principal.Customer.ID {
			return apperrors.NewForbidden("not your ticket")
		}
	case principal.Rep != nil:
		if principal.VendorID != "" && ticket.VendorID != "" && ticket.VendorID != principal.VendorID {
			return apperrors.NewForbidden("ticket belongs to another vendor")
		}
	}
	return nil
}

func actorFromPrincipal(principal *auth.Principal) (domain.SenderKind, *string) {
	switch {
	case principal.Customer != nil:
		id := principal.Customer.ID
		return domain.SenderCustomer, &id
	case principal.Rep != nil:
		id := principal.Rep.ID
		return domain.SenderRep, &id
	default:
		return domain.SenderSystem, nil
	}
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if channel := c.Query("channel"); channel != "" {
		ch := domain.Channel(channel)
		filter.Channel = &ch
	}
	if tier := c.Query("tier"); tier != "" {
		t := domain.SupportTier(tier)
		filter.Tier = &t
	}
	if c.QueryBool("open_only", false) {
		filter.OpenOnly = true
	}
	page := parseIntDefault(c.Query("page"), 1)
	pageSize := parseIntDefault(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
