package proposal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func draft(t *testing.T, tenantID, ticketID string) proposal.Proposal {
	t.Helper()
	p, err := proposal.NewDraft(tenantID, ticketID, proposal.Content{
		DraftResponse: "Rotate the key.",
		Confidence:    proposal.Medium,
		Mode:          proposal.Synthesis,
	}, now)
	require.NoError(t, err)
	return p
}

func TestMemory_TenantIsolationWithCollidingIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	a := draft(t, "tenant-a", "T-1")
	b := a
	b.TenantID = "tenant-b"
	b.DraftResponse = "tenant b text"

	require.NoError(t, repo.Create(ctx, "tenant-a", a))
	require.NoError(t, repo.Create(ctx, "tenant-b", b))

	approved, entry, err := a.Approve("agent", "", now)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, "tenant-a", approved, entry))

	gotB, err := repo.Get(ctx, "tenant-b", a.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.Draft, gotB.Status, "tenant B row must be untouched")
	assert.Equal(t, "tenant b text", gotB.DraftResponse)

	logsB, err := repo.Logs(ctx, "tenant-b", a.ID)
	require.NoError(t, err)
	assert.Empty(t, logsB)

	_, err = repo.Get(ctx, "tenant-c", a.ID)
	assert.ErrorIs(t, err, domain.ErrProposalNotFound)
}

func TestMemory_TransitionLosesRace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	p := draft(t, "acme", "T-1")
	require.NoError(t, repo.Create(ctx, "acme", p))

	approved, e1, err := p.Approve("alice", "", now)
	require.NoError(t, err)
	rejected, e2, err := p.Reject("bob", "wrong product", now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = repo.Transition(ctx, "acme", approved, e1) }()
	go func() { defer wg.Done(); errs[1] = repo.Transition(ctx, "acme", rejected, e2) }()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var rc *domain.RevisionConflictError
		require.True(t, errors.As(err, &rc), "loser must get a revision conflict, got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	logs, err := repo.Logs(ctx, "acme", p.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestMemory_SupersedeChain(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	v1 := draft(t, "acme", "T-9")
	require.NoError(t, repo.Create(ctx, "acme", v1))

	c := proposal.Content{DraftResponse: "v2", Confidence: proposal.Low, Mode: proposal.Direct}
	old, v2, entry, err := v1.Refine(c, "agent", "shorter", now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, repo.Supersede(ctx, "acme", old, v2, entry))

	// Refining v1 again must conflict: it is no longer a draft.
	_, v2b, entry2, err := v1.Refine(c, "agent", "again", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Supersede(ctx, "acme", old, v2b, entry2), domain.ErrRevisionConflict)

	list, err := repo.ListByTicket(ctx, "acme", "T-9")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, proposal.Superseded, list[0].Status)
	assert.Equal(t, "Rotate the key.", list[0].DraftResponse)
	assert.Equal(t, 2, list[1].Version)
	assert.Equal(t, proposal.Draft, list[1].Status)
}

func TestMemory_TransitionMissing(t *testing.T) {
	p := draft(t, "acme", "T-1")
	approved, e, err := p.Approve("a", "", now)
	require.NoError(t, err)
	assert.ErrorIs(t, NewMemory().Transition(context.Background(), "acme", approved, e), domain.ErrProposalNotFound)
}

func TestMemory_RequiresTenant(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "", "x")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMemory_ReadsDoNotCreateTenants(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := draft(t, "ghost", "T-1")
	approved, entry, err := p.Approve("agent-7", "", now)
	require.NoError(t, err)

	_, err = m.Get(ctx, "ghost", p.ID)
	assert.ErrorIs(t, err, domain.ErrProposalNotFound)

	list, err := m.ListByTicket(ctx, "ghost", "T-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	logs, err := m.Logs(ctx, "ghost", p.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, m.Transition(ctx, "ghost", approved, entry), domain.ErrProposalNotFound)
	assert.Empty(t, m.tenants, "read and failed write paths must not register a tenant")
}
