package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// AuthService issues tokens for customers and representatives.
type AuthService struct {
	customers  repository.CustomerRepository
	reps       repository.RepRepository
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	CustomerRepo repository.CustomerRepository
	RepRepo      repository.RepRepository
	Tokens       *auth.TokenManager
	BcryptCost   int
	Logger       *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := deps.BcryptCost
	if cost <= 0 {
		cost = 10
	}
	return &AuthService{
		customers:  deps.CustomerRepo,
		reps:       deps.RepRepo,
		tokens:     deps.Tokens,
		bcryptCost: cost,
		logger:     logger,
	}
}

// TokenResult carries an issued token and its expiry.
type TokenResult struct {
	Token     string
	ExpiresAt time.Time
}

// RegisterCustomerInput carries a customer signup.
type RegisterCustomerInput struct {
	VendorID string
	Name     string
	Email    string
	Password string
}

// RegisterCustomer creates a customer account.
func (s *AuthService) RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (*domain.Customer, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	if _, err := s.customers.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	customer := &domain.Customer{
		VendorID:     input.VendorID,
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Status:       domain.CustomerStatusActive,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

// RegisterRepInput carries a representative signup, admin-only in the API.
type RegisterRepInput struct {
	VendorID string
	Name     string
	Email    string
	Password string
	Role     domain.RepRole
}

// RegisterRep creates a representative account.
func (s *AuthService) RegisterRep(ctx context.Context, input RegisterRepInput) (*domain.Representative, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	switch input.Role {
	case domain.RepRoleL1, domain.RepRoleL2, domain.RepRoleL3, domain.RepRoleAdmin:
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if _, err := s.reps.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	rep := &domain.Representative{
		VendorID:     input.VendorID,
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.reps.Create(ctx, rep); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rep, nil
}

// LoginCustomer verifies credentials and issues a customer token.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*domain.Customer, *TokenResult, error) {
	customer, err := s.customers.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if customer.Status != domain.CustomerStatusActive {
		return nil, nil, apperrors.NewUnauthorized("account suspended")
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(customer.ID, domain.SubjectTypeCustomer, nil, customer.VendorID)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return customer, &TokenResult{Token: token, ExpiresAt: expiresAt}, nil
}

// LoginRep verifies credentials and issues a representative token.
func (s *AuthService) LoginRep(ctx context.Context, email, password string) (*domain.Representative, *TokenResult, error) {
	rep, err := s.reps.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !rep.Active {
		return nil, nil, apperrors.NewUnauthorized("representative inactive")
	}
	if err := auth.ComparePassword(rep.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	role := rep.Role
	token, expiresAt, err := s.tokens.GenerateToken(rep.ID, domain.SubjectTypeRep, &role, rep.VendorID)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return rep, &TokenResult{Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
