// Package tenant looks up per-tenant, per-platform engine settings.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/ticketlens/internal/db/postgres"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
)

// Postgres reads tenant_configs under the tenant's row-level security scope.
type Postgres struct {
	pool postgres.Pool
}

// NewPostgres creates a Postgres-backed tenant store.
func NewPostgres(pool postgres.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// GetConfig returns the settings of tenantID on platform.
func (r *Postgres) GetConfig(ctx context.Context, tenantID, platform string) (tenant.Config, error) {
	var (
		cfg   tenant.Config
		depth string
	)
	err := postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT tenant_id, platform, retrieval_enabled, analysis_depth, max_tokens
			FROM tenant_configs WHERE tenant_id = $1 AND platform = $2`,
			tenantID, platform,
		).Scan(&cfg.TenantID, &cfg.Platform, &cfg.RetrievalEnabled, &depth, &cfg.MaxTokens)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.Config{}, fmt.Errorf("tenant %s on %s: %w", tenantID, platform, domain.ErrTenantNotFound)
	}
	if err != nil {
		return tenant.Config{}, fmt.Errorf("get tenant config: %w", err)
	}

	cfg.AnalysisDepth = tenant.AnalysisDepth(depth)
	if err := cfg.Validate(); err != nil {
		return tenant.Config{}, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	return cfg, nil
}
