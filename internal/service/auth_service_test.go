package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

type memCustomerRepo struct {
	mu        sync.Mutex
	seq       int
	customers map[string]*domain.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (r *memCustomerRepo) Create(_ context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	customer.ID = fmt.Sprintf("cust-%d", r.seq)
	clone := *customer
	r.customers[customer.ID] = &clone
	return nil
}

func (r *memCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer, ok := r.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *customer
	return &clone, nil
}

func (r *memCustomerRepo) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, customer := range r.customers {
		if customer.Email == email {
			clone := *customer
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func newAuthFixture() (*AuthService, *memCustomerRepo, *memRepRepo) {
	customers := newMemCustomerRepo()
	reps := newMemRepRepo()
	svc := NewAuthService(AuthDependencies{
		CustomerRepo: customers,
		RepRepo:      reps,
		Tokens:       auth.NewTokenManager("test-secret", 30),
		BcryptCost:   4,
	})
	return svc, customers, reps
}

func TestRegisterAndLoginCustomer(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	customer, err := svc.RegisterCustomer(ctx, RegisterCustomerInput{
		VendorID: "v1",
		Name:     "Dana",
		Email:    "Dana@Example.com",
		Password: "hunter2!",
	})
	if err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}
	if customer.Email != "dana@example.com" {
		t.Errorf("email not normalized: %q", customer.Email)
	}
	if customer.PasswordHash == "hunter2!" {
		t.Error("password stored in plaintext")
	}

	_, token, err := svc.LoginCustomer(ctx, "dana@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("LoginCustomer: %v", err)
	}
	if token.Token == "" {
		t.Error("empty token issued")
	}

	if _, _, err := svc.LoginCustomer(ctx, "dana@example.com", "wrong"); apperrors.CodeOf(err) != "UNAUTHORIZED" {
		t.Errorf("wrong password: expected UNAUTHORIZED, got %v", err)
	}
	if _, _, err := svc.LoginCustomer(ctx, "nobody@example.com", "hunter2!"); apperrors.CodeOf(err) != "UNAUTHORIZED" {
		t.Errorf("unknown email: expected UNAUTHORIZED, got %v", err)
	}
}

func TestRegisterCustomerDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	input := RegisterCustomerInput{Email: "dup@example.com", Password: "pw"}
	if _, err := svc.RegisterCustomer(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.RegisterCustomer(ctx, input); apperrors.CodeOf(err) != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestLoginRepChecksRoleAndActive(t *testing.T) {
	svc, _, reps := newAuthFixture()
	ctx := context.Background()

	rep, err := svc.RegisterRep(ctx, RegisterRepInput{
		VendorID: "v1",
		Name:     "Omar",
		Email:    "omar@example.com",
		Password: "pw123456",
		Role:     domain.RepRoleL2,
	})
	if err != nil {
		t.Fatalf("RegisterRep: %v", err)
	}

	loaded, token, err := svc.LoginRep(ctx, "omar@example.com", "pw123456")
	if err != nil {
		t.Fatalf("LoginRep: %v", err)
	}
	if loaded.Role != domain.RepRoleL2 {
		t.Errorf("role = %q, want rep_l2", loaded.Role)
	}

	tokens := auth.NewTokenManager("test-secret", 30)
	claims, err := tokens.ParseToken(token.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Role == nil || *claims.Role != domain.RepRoleL2 {
		t.Errorf("token role = %v, want rep_l2", claims.Role)
	}

	// Deactivated reps cannot log in.
	stored, _ := reps.GetByID(ctx, rep.ID)
	stored.Active = false
	_ = reps.Create(ctx, stored)
	if _, _, err := svc.LoginRep(ctx, "omar@example.com", "pw123456"); apperrors.CodeOf(err) != "UNAUTHORIZED" {
		t.Errorf("inactive rep: expected UNAUTHORIZED, got %v", err)
	}
}

func TestRegisterRepRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newAuthFixture()
	_, err := svc.RegisterRep(context.Background(), RegisterRepInput{
		Email:    "x@example.com",
		Password: "pw",
		Role:     domain.RepRole("manager"),
	})
	if apperrors.CodeOf(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}
