package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/ticketlens/internal/db/postgres"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

const selectColumns = `id, tenant_id, ticket_id, COALESCE(parent_id, ''), version, draft_response,
	field_updates, reasoning, confidence, mode, similar_cases, kb_references, status,
	COALESCE(approved_by, ''), COALESCE(final_response, ''), COALESCE(rejection_reason, ''),
	created_at, updated_at`

const insertProposalSQL = `INSERT INTO proposals (
	tenant_id, id, ticket_id, parent_id, version, draft_response, field_updates, reasoning,
	confidence, mode, similar_cases, kb_references, status, created_at, updated_at
) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// transitionSQL only matches a draft: the first writer flips it, later writers match nothing.
const transitionSQL = `UPDATE proposals
	SET status = $3, approved_by = NULLIF($4, ''), final_response = NULLIF($5, ''),
		rejection_reason = NULLIF($6, ''), updated_at = $7
	WHERE tenant_id = $1 AND id = $2 AND status = 'draft'`

const insertLogSQL = `INSERT INTO proposal_logs (tenant_id, id, proposal_id, action, actor, feedback, created_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

// Postgres stores proposals in row-level-secured tables.
type Postgres struct {
	pool postgres.Pool
}

// NewPostgres creates a Postgres-backed repository.
func NewPostgres(pool postgres.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Create inserts a new draft version.
func (r *Postgres) Create(ctx context.Context, tenantID string, p proposal.Proposal) error {
	return postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		return insertProposal(ctx, tx, tenantID, p)
	})
}

// Get returns one proposal version.
func (r *Postgres) Get(ctx context.Context, tenantID, id string) (proposal.Proposal, error) {
	var out proposal.Proposal
	err := postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		p, err := getProposal(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// ListByTicket returns every version recorded for a ticket, oldest first.
func (r *Postgres) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]proposal.Proposal, error) {
	var out []proposal.Proposal
	err := postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+selectColumns+` FROM proposals
			WHERE tenant_id = $1 AND ticket_id = $2 ORDER BY created_at, version`,
			tenantID, ticketID)
		if err != nil {
			return fmt.Errorf("list proposals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProposal(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// Logs returns the approval log of one proposal version, oldest first.
func (r *Postgres) Logs(ctx context.Context, tenantID, proposalID string) ([]proposal.LogEntry, error) {
	var out []proposal.LogEntry
	err := postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, tenant_id, proposal_id, action, actor, COALESCE(feedback, ''), created_at
			FROM proposal_logs WHERE tenant_id = $1 AND proposal_id = $2 ORDER BY created_at`,
			tenantID, proposalID)
		if err != nil {
			return fmt.Errorf("list proposal logs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e      proposal.LogEntry
				action string
			)
			if err := rows.Scan(&e.ID, &e.TenantID, &e.ProposalID, &action, &e.Actor, &e.Feedback, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan proposal log: %w", err)
			}
			e.Action = proposal.Action(action)
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// Transition applies an approve or reject to a draft and appends its log entry atomically.
func (r *Postgres) Transition(ctx context.Context, tenantID string, updated proposal.Proposal, entry proposal.LogEntry) error {
	return postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		if err := updateDraft(ctx, tx, tenantID, updated); err != nil {
			return err
		}
		return insertLog(ctx, tx, tenantID, entry)
	})
}

// Supersede marks the prior draft superseded, inserts the next version and appends the refine entry atomically.
func (r *Postgres) Supersede(
	ctx context.Context, tenantID string, prior, next proposal.Proposal, entry proposal.LogEntry,
) error {
	return postgres.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		if err := updateDraft(ctx, tx, tenantID, prior); err != nil {
			return err
		}
		if err := insertProposal(ctx, tx, tenantID, next); err != nil {
			return err
		}
		return insertLog(ctx, tx, tenantID, entry)
	})
}

func updateDraft(ctx context.Context, tx pgx.Tx, tenantID string, p proposal.Proposal) error {
	tag, err := tx.Exec(ctx, transitionSQL,
		tenantID, p.ID, string(p.Status), p.ApprovedBy, p.FinalResponse, p.RejectionReason, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update proposal %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := getProposal(ctx, tx, tenantID, p.ID)
	if errors.Is(err, domain.ErrProposalNotFound) {
		return conflictOrMissing(nil, p.ID)
	}
	if err != nil {
		return err
	}
	return conflictOrMissing(&current, p.ID)
}

func insertProposal(ctx context.Context, tx pgx.Tx, tenantID string, p proposal.Proposal) error {
	fields, err := json.Marshal(p.FieldUpdates)
	if err != nil {
		return fmt.Errorf("marshal field updates: %w", err)
	}
	cases, err := json.Marshal(p.SimilarCases)
	if err != nil {
		return fmt.Errorf("marshal similar cases: %w", err)
	}
	kb, err := json.Marshal(p.KBReferences)
	if err != nil {
		return fmt.Errorf("marshal kb references: %w", err)
	}

	if _, err := tx.Exec(ctx, insertProposalSQL,
		tenantID, p.ID, p.TicketID, p.ParentID, p.Version, p.DraftResponse, string(fields), p.Reasoning,
		string(p.Confidence), string(p.Mode), string(cases), string(kb), string(p.Status),
		p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert proposal %s: %w", p.ID, err)
	}
	return nil
}

func insertLog(ctx context.Context, tx pgx.Tx, tenantID string, e proposal.LogEntry) error {
	if _, err := tx.Exec(ctx, insertLogSQL,
		tenantID, e.ID, e.ProposalID, string(e.Action), e.Actor, e.Feedback, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert proposal log: %w", err)
	}
	return nil
}

func getProposal(ctx context.Context, tx pgx.Tx, tenantID, id string) (proposal.Proposal, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM proposals WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, domain.ErrProposalNotFound)
	}
	return p, err
}

func scanProposal(row pgx.Row) (proposal.Proposal, error) {
	var (
		p                       proposal.Proposal
		fields, cases, kb       []byte
		confidence, mode, state string
	)
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.TicketID, &p.ParentID, &p.Version, &p.DraftResponse,
		&fields, &p.Reasoning, &confidence, &mode, &cases, &kb, &state,
		&p.ApprovedBy, &p.FinalResponse, &p.RejectionReason, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return proposal.Proposal{}, err
		}
		return proposal.Proposal{}, fmt.Errorf("scan proposal: %w", err)
	}

	p.Confidence = proposal.Confidence(confidence)
	p.Mode = proposal.Mode(mode)
	p.Status = proposal.Status(state)
	if err := unmarshalJSON(fields, &p.FieldUpdates); err != nil {
		return proposal.Proposal{}, err
	}
	if err := unmarshalJSON(cases, &p.SimilarCases); err != nil {
		return proposal.Proposal{}, err
	}
	if err := unmarshalJSON(kb, &p.KBReferences); err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func unmarshalJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode proposal column: %w", err)
	}
	return nil
}
