package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-orchestrator/internal/api/dto"
	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/session"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// SessionsHandler exposes live-session control endpoints.
type SessionsHandler struct {
	coordinator *session.Coordinator
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(coordinator *session.Coordinator) *SessionsHandler {
	return &SessionsHandler{coordinator: coordinator}
}

// Start POST /sessions.
func (h *SessionsHandler) Start(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := session.StartInput{TicketID: req.TicketID, AgentKind: req.AgentKind}
	if req.TicketID == "" {
		// No ticket yet: open one from the intake fields. Only customers
		// start sessions without a ticket.
		if principal.Customer == nil {
			return apperrors.NewValidationError("ticket_id required", nil)
		}
		if req.Description == "" {
			return apperrors.NewValidationError("ticket_id or description required", nil)
		}
		input.Intake = &session.TicketIntake{
			CustomerID:       principal.Customer.ID,
			VendorID:         principal.Customer.VendorID,
			Description:      req.Description,
			Category:         req.Category,
			Severity:         req.Severity,
			Urgency:          req.Urgency,
			PreferredContact: req.PreferredContact,
		}
	}
	if principal.Rep != nil {
		repID := principal.Rep.ID
		input.RepID = &repID
		if input.AgentKind == "" {
			input.AgentKind = domain.AgentHuman
		}
	}

	sess, err := h.coordinator.StartSession(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(sess)})
}

// Get GET /sessions/:id.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	sess, ok := h.coordinator.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": sessionResponse(sess)})
}

// HangUp POST /sessions/:id/hangup. Idempotent: hanging up an ended or
// unknown session succeeds.
func (h *SessionsHandler) HangUp(c *fiber.Ctx) error {
	h.coordinator.HangUp(c.Params("id"))
	return c.JSON(fiber.Map{"data": fiber.Map{"ended": true}})
}

// Redial POST /sessions/:id/redial reconnects an idle session.
func (h *SessionsHandler) Redial(c *fiber.Ctx) error {
	sess, ok := h.coordinator.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	sess.Redial()
	return c.JSON(fiber.Map{"data": sessionResponse(sess)})
}

// Say POST /sessions/:id/say feeds typed customer input into the session.
func (h *SessionsHandler) Say(c *fiber.Ctx) error {
	sess, ok := h.coordinator.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	var req dto.SayRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return apperrors.NewValidationError("content required", nil)
	}
	sess.Inject(req.Content, true)
	return c.JSON(fiber.Map{"data": sessionResponse(sess)})
}

// Suggestions GET /sessions/:id/suggestions.
func (h *SessionsHandler) Suggestions(c *fiber.Ctx) error {
	sess, ok := h.coordinator.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	suggestions := sess.Suggestions()
	items := make([]dto.SuggestionResponse, 0, len(suggestions))
	for _, suggestion := range suggestions {
		items = append(items, suggestionResponse(suggestion))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DismissSuggestion DELETE /sessions/:id/suggestions/:suggestionId.
func (h *SessionsHandler) DismissSuggestion(c *fiber.Ctx) error {
	sess, ok := h.coordinator.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	sess.DismissSuggestion(c.Params("suggestionId"))
	return c.JSON(fiber.Map{"data": fiber.Map{"dismissed": true}})
}
