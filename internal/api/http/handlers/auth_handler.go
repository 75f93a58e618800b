package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-orchestrator/internal/api/dto"
	"github.com/spec-kit/support-orchestrator/internal/service"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// RegisterCustomer POST /auth/customers/register.
func (h *AuthHandler) RegisterCustomer(c *fiber.Ctx) error {
	var req dto.RegisterCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	customer, err := h.service.RegisterCustomer(c.UserContext(), service.RegisterCustomerInput{
		VendorID: req.VendorID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": customerResponse(customer)})
}

// LoginCustomer POST /auth/customers/login.
func (h *AuthHandler) LoginCustomer(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	customer, token, err := h.service.LoginCustomer(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"customer": customerResponse(customer),
		"token":    dto.TokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt},
	}})
}

// RegisterRep POST /auth/reps/register (admin only).
func (h *AuthHandler) RegisterRep(c *fiber.Ctx) error {
	var req dto.RegisterRepRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rep, err := h.service.RegisterRep(c.UserContext(), service.RegisterRepInput{
		VendorID: req.VendorID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": repResponse(rep)})
}

// LoginRep POST /auth/reps/login.
func (h *AuthHandler) LoginRep(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rep, token, err := h.service.LoginRep(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"rep":   repResponse(rep),
		"token": dto.TokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt},
	}})
}
