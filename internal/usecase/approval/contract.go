package approval

import (
	"context"

	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

// Repository persists proposals and their log. Transition and Supersede must apply only while the
// stored row is still a draft and write the log entry in the same unit of work.
type Repository interface {
	Create(ctx context.Context, tenantID string, p proposal.Proposal) error
	Get(ctx context.Context, tenantID, id string) (proposal.Proposal, error)
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]proposal.Proposal, error)
	Logs(ctx context.Context, tenantID, proposalID string) ([]proposal.LogEntry, error)
	Transition(ctx context.Context, tenantID string, updated proposal.Proposal, entry proposal.LogEntry) error
	Supersede(ctx context.Context, tenantID string, prior, next proposal.Proposal, entry proposal.LogEntry) error
}

// Refiner regenerates draft content from reviewer feedback.
type Refiner interface {
	Refine(ctx context.Context, tenantID string, prior proposal.Proposal, instruction string) (proposal.Content, error)
}
