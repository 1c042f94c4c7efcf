package workflow

import (
	"context"

	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/domain/ticket"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
	"github.com/kailas-cloud/ticketlens/internal/usecase/retrieval"
)

// TenantConfigs looks up a tenant's per-platform settings.
type TenantConfigs interface {
	GetConfig(ctx context.Context, tenantID, platform string) (tenant.Config, error)
}

// TicketSource reads tickets from the ticketing system.
type TicketSource interface {
	Fetch(ctx context.Context, cfg tenant.Config, ticketID string) (ticket.Ticket, error)
}

// Retriever searches every document family.
type Retriever interface {
	Retrieve(ctx context.Context, cfg tenant.Config, sc intent.SearchContext) retrieval.Outcome
}

// Resolver drafts a proposal.
type Resolver interface {
	Resolve(ctx context.Context, in resolution.Input) (proposal.Proposal, error)
}

// ProposalStore persists a finished draft.
type ProposalStore interface {
	Create(ctx context.Context, tenantID string, p proposal.Proposal) (proposal.Proposal, error)
}
