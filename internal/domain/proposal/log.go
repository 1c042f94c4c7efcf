package proposal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is an approval-log verb.
type Action string

// Actions.
const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRefine  Action = "refine"
)

// ParseAction validates a client-supplied action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionReject, ActionRefine:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// LogEntry is one append-only audit row; exactly one is written per transition.
type LogEntry struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ProposalID string    `json:"proposal_id"`
	Action     Action    `json:"action"`
	Actor      string    `json:"actor"`
	Feedback   string    `json:"feedback,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newLogEntry(p Proposal, action Action, actor, feedback string, now time.Time) LogEntry {
	return LogEntry{
		ID:         uuid.NewString(),
		TenantID:   p.TenantID,
		ProposalID: p.ID,
		Action:     action,
		Actor:      actor,
		Feedback:   feedback,
		CreatedAt:  now.UTC(),
	}
}
