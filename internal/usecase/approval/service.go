// Package approval runs the human review lifecycle of proposals.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
)

// Decision is an approve or reject request.
type Decision struct {
	Action    proposal.Action
	FinalText string
	Reason    string
	Actor     string
}

// RefineRequest asks for a new version of a draft.
type RefineRequest struct {
	Instruction string
	Actor       string
}

// Service manages proposal transitions.
type Service struct {
	repo    Repository
	refiner Refiner
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an approval service.
func New(repo Repository, refiner Refiner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, refiner: refiner, logger: log, now: time.Now}
}

// Create persists a freshly drafted proposal.
func (s *Service) Create(ctx context.Context, tenantID string, p proposal.Proposal) (proposal.Proposal, error) {
	if tenantID == "" {
		return proposal.Proposal{}, domain.ErrUnauthorized
	}
	if p.TenantID != tenantID {
		return proposal.Proposal{}, fmt.Errorf("proposal tenant %q does not match %q: %w", p.TenantID, tenantID, domain.ErrValidation)
	}
	if p.Status != proposal.Draft {
		return proposal.Proposal{}, fmt.Errorf("new proposals must be drafts, got %s: %w", p.Status, domain.ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return proposal.Proposal{}, err
	}
	if err := s.repo.Create(ctx, tenantID, p); err != nil {
		return proposal.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	return p, nil
}

// Get returns one proposal version.
func (s *Service) Get(ctx context.Context, tenantID, id string) (proposal.Proposal, error) {
	p, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// History returns every version drafted for a ticket, oldest first.
func (s *Service) History(ctx context.Context, tenantID, ticketID string) ([]proposal.Proposal, error) {
	list, err := s.repo.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return list, nil
}

// Logs returns the approval log of one proposal version.
func (s *Service) Logs(ctx context.Context, tenantID, proposalID string) ([]proposal.LogEntry, error) {
	if _, err := s.repo.Get(ctx, tenantID, proposalID); err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	entries, err := s.repo.Logs(ctx, tenantID, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return entries, nil
}

// Approve applies an approve or reject decision. Only a draft may transition; when two reviewers
// race, the first write wins and the other gets a revision conflict.
func (s *Service) Approve(ctx context.Context, tenantID, id string, d Decision) (proposal.Proposal, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}

	var (
		updated proposal.Proposal
		entry   proposal.LogEntry
	)
	now := s.now()
	switch d.Action {
	case proposal.ActionApprove:
		updated, entry, err = current.Approve(d.Actor, d.FinalText, now)
	case proposal.ActionReject:
		updated, entry, err = current.Reject(d.Actor, d.Reason, now)
	default:
		err = fmt.Errorf("action %q is not approve or reject: %w", d.Action, domain.ErrValidation)
	}
	if err != nil {
		s.observe(d.Action, err)
		return proposal.Proposal{}, err
	}

	if err := s.repo.Transition(ctx, tenantID, updated, entry); err != nil {
		s.observe(d.Action, err)
		return proposal.Proposal{}, fmt.Errorf("%s proposal: %w", d.Action, err)
	}
	s.observe(d.Action, nil)

	logger.FromContextOr(ctx, s.logger).Info("proposal transitioned",
		zap.String("tenant_id", tenantID),
		zap.String("proposal_id", id),
		zap.String("action", string(d.Action)),
		zap.String("actor", d.Actor),
	)
	return updated, nil
}

// Refine drafts version n+1 from reviewer feedback and supersedes the current version.
func (s *Service) Refine(ctx context.Context, tenantID, id string, req RefineRequest) (proposal.Proposal, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return proposal.Proposal{}, fmt.Errorf("instruction is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return proposal.Proposal{}, fmt.Errorf("actor is required: %w", domain.ErrValidation)
	}

	prior, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	if prior.Status != proposal.Draft {
		err := fmt.Errorf("proposal %s v%d is %s: %w", prior.ID, prior.Version, prior.Status, domain.ErrInvalidTransition)
		s.observe(proposal.ActionRefine, err)
		return proposal.Proposal{}, err
	}

	content, err := s.refiner.Refine(ctx, tenantID, prior, req.Instruction)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("regenerate draft: %w", err)
	}

	superseded, next, entry, err := prior.Refine(content, req.Actor, req.Instruction, s.now())
	if err != nil {
		s.observe(proposal.ActionRefine, err)
		return proposal.Proposal{}, err
	}
	if err := s.repo.Supersede(ctx, tenantID, superseded, next, entry); err != nil {
		s.observe(proposal.ActionRefine, err)
		return proposal.Proposal{}, fmt.Errorf("refine proposal: %w", err)
	}
	s.observe(proposal.ActionRefine, nil)

	logger.FromContextOr(ctx, s.logger).Info("proposal refined",
		zap.String("tenant_id", tenantID),
		zap.String("proposal_id", prior.ID),
		zap.String("next_id", next.ID),
		zap.Int("version", next.Version),
	)
	return next, nil
}

func (s *Service) observe(action proposal.Action, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRevisionConflict):
		result = "conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.ProposalTransitionsTotal.WithLabelValues(string(action), result).Inc()
}
