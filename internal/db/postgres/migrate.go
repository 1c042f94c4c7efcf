package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const migrationLockID = 7311042

// schema is idempotent. Policies are dropped and recreated so edits apply on redeploy.
const schema = `
CREATE TABLE IF NOT EXISTS tenant_configs (
	tenant_id         TEXT        NOT NULL,
	platform          TEXT        NOT NULL,
	retrieval_enabled BOOLEAN     NOT NULL DEFAULT true,
	analysis_depth    TEXT        NOT NULL DEFAULT 'standard',
	max_tokens        INTEGER     NOT NULL DEFAULT 8000,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, platform)
);

CREATE TABLE IF NOT EXISTS proposals (
	tenant_id        TEXT        NOT NULL,
	id               TEXT        NOT NULL,
	ticket_id        TEXT        NOT NULL,
	parent_id        TEXT,
	version          INTEGER     NOT NULL CHECK (version >= 1),
	draft_response   TEXT        NOT NULL,
	field_updates    JSONB       NOT NULL DEFAULT '{}',
	reasoning        TEXT        NOT NULL DEFAULT '',
	confidence       TEXT        NOT NULL,
	mode             TEXT        NOT NULL,
	similar_cases    JSONB       NOT NULL DEFAULT '[]',
	kb_references    JSONB       NOT NULL DEFAULT '[]',
	status           TEXT        NOT NULL,
	approved_by      TEXT,
	final_response   TEXT,
	rejection_reason TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_proposals_ticket ON proposals (tenant_id, ticket_id, version);

CREATE TABLE IF NOT EXISTS proposal_logs (
	tenant_id   TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	proposal_id TEXT        NOT NULL,
	action      TEXT        NOT NULL,
	actor       TEXT        NOT NULL,
	feedback    TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, id),
	FOREIGN KEY (tenant_id, proposal_id) REFERENCES proposals (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_proposal_logs_proposal ON proposal_logs (tenant_id, proposal_id, created_at);

ALTER TABLE tenant_configs ENABLE ROW LEVEL SECURITY;
ALTER TABLE tenant_configs FORCE ROW LEVEL SECURITY;
ALTER TABLE proposals ENABLE ROW LEVEL SECURITY;
ALTER TABLE proposals FORCE ROW LEVEL SECURITY;
ALTER TABLE proposal_logs ENABLE ROW LEVEL SECURITY;
ALTER TABLE proposal_logs FORCE ROW LEVEL SECURITY;

DROP POLICY IF EXISTS tenant_isolation ON tenant_configs;
CREATE POLICY tenant_isolation ON tenant_configs
	USING (tenant_id = current_setting('app.tenant_id', true))
	WITH CHECK (tenant_id = current_setting('app.tenant_id', true));

DROP POLICY IF EXISTS tenant_isolation ON proposals;
CREATE POLICY tenant_isolation ON proposals
	USING (tenant_id = current_setting('app.tenant_id', true))
	WITH CHECK (tenant_id = current_setting('app.tenant_id', true));

DROP POLICY IF EXISTS tenant_isolation ON proposal_logs;
CREATE POLICY tenant_isolation ON proposal_logs
	USING (tenant_id = current_setting('app.tenant_id', true))
	WITH CHECK (tenant_id = current_setting('app.tenant_id', true));
`

// Migrate applies the schema in one transaction under a transaction-scoped advisory lock.
// Concurrent callers wait for the lock; it is released on commit or rollback.
func Migrate(ctx context.Context, pool Pool, logger *zap.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin migration: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("postgres: acquire migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit migration: %w", err)
	}
	logger.Info("postgres schema applied")
	return nil
}
