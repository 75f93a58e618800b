package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-orchestrator/internal/domain"
)

// RepRepository manages support representatives.
type RepRepository interface {
	Create(ctx context.Context, rep *domain.Representative) error
	GetByID(ctx context.Context, id string) (*domain.Representative, error)
	GetByEmail(ctx context.Context, email string) (*domain.Representative, error)
}

type repRepository struct {
	pool *pgxpool.Pool
}

// NewRepRepository builds repository.
func NewRepRepository(pool *pgxpool.Pool) RepRepository {
	return &repRepository{pool: pool}
}

func (r *repRepository) Create(ctx context.Context, rep *domain.Representative) error {
	const query = `
        INSERT INTO representatives (vendor_id, name, email, password_hash, role, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rep.VendorID,
		rep.Name,
		rep.Email,
		rep.PasswordHash,
		rep.Role,
		rep.Active,
	).Scan(&rep.ID, &rep.CreatedAt, &rep.UpdatedAt)
}

func (r *repRepository) GetByID(ctx context.Context, id string) (*domain.Representative, error) {
	const query = `
        SELECT id, vendor_id, name, email, password_hash, role, active, created_at, updated_at
        FROM representatives WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *repRepository) GetByEmail(ctx context.Context, email string) (*domain.Representative, error) {
	const query = `
        SELECT id, vendor_id, name, email, password_hash, role, active, created_at, updated_at
        FROM representatives WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *repRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Representative, error) {
	var rep domain.Representative
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&rep.ID,
		&rep.VendorID,
		&rep.Name,
		&rep.Email,
		&rep.PasswordHash,
		&rep.Role,
		&rep.Active,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rep, nil
}
