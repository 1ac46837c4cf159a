package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBindingRepository implements BindingRepository using
// PostgreSQL. The table holds a single row; the unique id constraint
// makes the first insert win under concurrent logins.
type PostgresBindingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBindingRepository creates a new PostgreSQL binding repository
func NewPostgresBindingRepository(pool *pgxpool.Pool) *PostgresBindingRepository {
	return &PostgresBindingRepository{pool: pool}
}

// Schema returns the DDL for the identity binding table.
func (r *PostgresBindingRepository) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS oidc_identity_binding (
	id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	issuer TEXT NOT NULL,
	subject TEXT NOT NULL,
	bound_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
}

// GetBinding returns the current binding, or nil when unbound
func (r *PostgresBindingRepository) GetBinding(ctx context.Context) (*IdentityBinding, error) {
	var binding IdentityBinding
	err := r.pool.QueryRow(ctx,
		`SELECT issuer, subject, bound_at FROM oidc_identity_binding WHERE id = 1`,
	).Scan(&binding.Issuer, &binding.Subject, &binding.BoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity binding: %w", err)
	}
	return &binding, nil
}

// BindIdentity records the binding if none exists and returns the
// effective binding
func (r *PostgresBindingRepository) BindIdentity(ctx context.Context, issuer, subject string) (*IdentityBinding, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO oidc_identity_binding (id, issuer, subject) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		issuer, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to bind identity: %w", err)
	}

	binding, err := r.GetBinding(ctx)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, fmt.Errorf("identity binding not found after insert")
	}
	return binding, nil
}

// ClearBinding removes the binding
func (r *PostgresBindingRepository) ClearBinding(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM oidc_identity_binding WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to clear identity binding: %w", err)
	}
	return nil
}
