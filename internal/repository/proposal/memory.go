package proposal

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

type tenantRows struct {
	proposals map[string]proposal.Proposal
	logs      []proposal.LogEntry
}

// Memory keeps proposals in process, partitioned by tenant. Used by the memory storage driver and tests.
type Memory struct {
	mu      sync.Mutex
	tenants map[string]*tenantRows
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{tenants: make(map[string]*tenantRows)}
}

// partition returns the tenant's rows. Unless create is set, a tenant without rows gets an empty,
// unregistered partition so reads never allocate.
func (m *Memory) partition(tenantID string, create bool) (*tenantRows, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("proposal store: tenant id is required: %w", domain.ErrUnauthorized)
	}
	if t, ok := m.tenants[tenantID]; ok {
		return t, nil
	}
	if !create {
		return &tenantRows{}, nil
	}
	t := &tenantRows{proposals: make(map[string]proposal.Proposal)}
	m.tenants[tenantID] = t
	return t, nil
}

// Create inserts a new version.
func (m *Memory) Create(_ context.Context, tenantID string, p proposal.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, true)
	if err != nil {
		return err
	}
	if _, exists := t.proposals[p.ID]; exists {
		return fmt.Errorf("proposal %s already exists", p.ID)
	}
	p.TenantID = tenantID
	t.proposals[p.ID] = clone(p)
	return nil
}

// Get returns one proposal version.
func (m *Memory) Get(_ context.Context, tenantID, id string) (proposal.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, false)
	if err != nil {
		return proposal.Proposal{}, err
	}
	p, ok := t.proposals[id]
	if !ok {
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, domain.ErrProposalNotFound)
	}
	return clone(p), nil
}

// ListByTicket returns every version recorded for a ticket, oldest first.
func (m *Memory) ListByTicket(_ context.Context, tenantID, ticketID string) ([]proposal.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, false)
	if err != nil {
		return nil, err
	}
	var out []proposal.Proposal
	for _, p := range t.proposals {
		if p.TicketID == ticketID {
			out = append(out, clone(p))
		}
	}
	slices.SortFunc(out, func(a, b proposal.Proposal) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Version, b.Version)
	})
	return out, nil
}

// Logs returns the approval log of one proposal version, oldest first.
func (m *Memory) Logs(_ context.Context, tenantID, proposalID string) ([]proposal.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, false)
	if err != nil {
		return nil, err
	}
	var out []proposal.LogEntry
	for _, e := range t.logs {
		if e.ProposalID == proposalID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Transition applies an approve or reject to a draft and appends its log entry.
func (m *Memory) Transition(_ context.Context, tenantID string, updated proposal.Proposal, entry proposal.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, false)
	if err != nil {
		return err
	}
	if err := t.checkDraft(updated.ID); err != nil {
		return err
	}
	t.apply(updated)
	t.logs = append(t.logs, entry)
	return nil
}

// Supersede marks the prior draft superseded, inserts the next version and appends the refine entry.
func (m *Memory) Supersede(
	_ context.Context, tenantID string, prior, next proposal.Proposal, entry proposal.LogEntry,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.partition(tenantID, false)
	if err != nil {
		return err
	}
	if err := t.checkDraft(prior.ID); err != nil {
		return err
	}
	if _, exists := t.proposals[next.ID]; exists {
		return fmt.Errorf("proposal %s already exists", next.ID)
	}
	t.apply(prior)
	next.TenantID = tenantID
	t.proposals[next.ID] = clone(next)
	t.logs = append(t.logs, entry)
	return nil
}

func (t *tenantRows) checkDraft(id string) error {
	current, ok := t.proposals[id]
	if !ok {
		return conflictOrMissing(nil, id)
	}
	if current.Status != proposal.Draft {
		return conflictOrMissing(&current, id)
	}
	return nil
}

// apply copies only the columns the conditional UPDATE touches.
func (t *tenantRows) apply(updated proposal.Proposal) {
	row := t.proposals[updated.ID]
	row.Status = updated.Status
	row.ApprovedBy = updated.ApprovedBy
	row.FinalResponse = updated.FinalResponse
	row.RejectionReason = updated.RejectionReason
	row.UpdatedAt = updated.UpdatedAt
	t.proposals[updated.ID] = row
}

func clone(p proposal.Proposal) proposal.Proposal {
	p.FieldUpdates = maps.Clone(p.FieldUpdates)
	p.SimilarCases = slices.Clone(p.SimilarCases)
	p.KBReferences = slices.Clone(p.KBReferences)
	return p
}
