package dto

import (
	"time"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// RegisterCustomerRequest payload.
type RegisterCustomerRequest struct {
	VendorID string `json:"vendor_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRepRequest payload, admin only.
type RegisterRepRequest struct {
	VendorID string         `json:"vendor_id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     domain.RepRole `json:"role"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CustomerResponse is public customer info.
type CustomerResponse struct {
	ID       string `json:"id"`
	VendorID string `json:"vendor_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// RepResponse is public representative info.
type RepResponse struct {
	ID       string         `json:"id"`
	VendorID string         `json:"vendor_id,omitempty"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Role     domain.RepRole `json:"role"`
	Active   bool           `json:"active"`
}
