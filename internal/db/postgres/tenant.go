package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNoTenant is returned when a unit of work is started without a tenant identifier.
var ErrNoTenant = errors.New("postgres: tenant id is required")

// TenantSetting is the session variable the row-level security policies read.
const TenantSetting = "app.tenant_id"

const setTenantSQL = "SELECT set_config('" + TenantSetting + "', $1, true)"

// WithTenant runs fn inside a transaction whose row-level security scope is tenantID.
// The setting is transaction-local, so a pooled connection never leaks it to the next borrower.
// fn's error rolls the transaction back; otherwise it is committed.
func WithTenant(ctx context.Context, pool Pool, tenantID string, fn func(tx pgx.Tx) error) error {
	if tenantID == "" {
		return ErrNoTenant
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, setTenantSQL, tenantID); err != nil {
		return fmt.Errorf("postgres: set tenant: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}
