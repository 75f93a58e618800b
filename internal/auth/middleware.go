package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller: {id, role, vendor}.
type Principal struct {
	SubjectType domain.SubjectType
	Customer    *domain.Customer
	Rep         *domain.Representative
	Role        *domain.RepRole
	VendorID    string
}

// ID returns the caller's subject id.
func (p *Principal) ID() string {
	switch {
	case p.Customer != nil:
		return p.Customer.ID
	case p.Rep != nil:
		return p.Rep.ID
	default:
		return ""
	}
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	customers repository.CustomerRepository
	reps      repository.RepRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, customers repository.CustomerRepository, reps repository.RepRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, customers: customers, reps: reps}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject, Role: claims.Role, VendorID: claims.VendorID}

	switch claims.Subject {
	case domain.SubjectTypeCustomer:
		customer, err := m.customers.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("customer not found")
			}
			return apperrors.MapError(err)
		}
		principal.Customer = customer
		principal.VendorID = customer.VendorID
	case domain.SubjectTypeRep:
		rep, err := m.reps.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("representative not found")
			}
			return apperrors.MapError(err)
		}
		if !rep.Active {
			return apperrors.NewUnauthorized("representative inactive")
		}
		principal.Rep = rep
		principal.Role = &rep.Role
		principal.VendorID = rep.VendorID
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
