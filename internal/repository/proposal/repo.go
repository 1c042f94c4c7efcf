// Package proposal persists proposal versions and their approval log.
// Every call is scoped to one tenant; rows of other tenants are invisible even when IDs collide.
package proposal

import (
	"fmt"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

// conflictOrMissing explains why a conditional draft update matched no row.
func conflictOrMissing(current *proposal.Proposal, id string) error {
	if current == nil {
		return fmt.Errorf("proposal %s: %w", id, domain.ErrProposalNotFound)
	}
	return domain.NewRevisionConflict(current.Version, string(current.Status))
}
