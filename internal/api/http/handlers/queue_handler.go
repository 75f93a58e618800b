package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-orchestrator/internal/api/dto"
	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/service"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// QueueHandler exposes the rep-facing pending-ticket listing.
type QueueHandler struct {
	queue *service.QueueService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{queue: queueService}
}

// ListEligible GET /queue. Tier visibility follows the caller's role.
func (h *QueueHandler) ListEligible(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Rep == nil {
		return apperrors.NewUnauthorized("representative required")
	}

	query := service.EligibleQuery{
		VendorID: principal.VendorID,
		Role:     principal.Rep.Role,
		Limit:    parseIntDefault(c.Query("limit"), 50),
	}
	if channel := c.Query("channel"); channel != "" {
		ch := domain.Channel(channel)
		query.Channel = &ch
	}

	entries, err := h.queue.ListEligible(c.UserContext(), query)
	if err != nil {
		return err
	}
	items := make([]dto.QueueEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, queueEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListEligibleTickets GET /queue/tickets resolves entries to full tickets.
func (h *QueueHandler) ListEligibleTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Rep == nil {
		return apperrors.NewUnauthorized("representative required")
	}

	query := service.EligibleQuery{
		VendorID: principal.VendorID,
		Role:     principal.Rep.Role,
		Limit:    parseIntDefault(c.Query("limit"), 50),
	}
	if channel := c.Query("channel"); channel != "" {
		ch := domain.Channel(channel)
		query.Channel = &ch
	}

	tickets, err := h.queue.ListEligibleTickets(c.UserContext(), query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
