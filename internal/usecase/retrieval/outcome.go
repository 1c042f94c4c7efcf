package retrieval

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

// State is the outcome of one family.
type State string

// Family states. Empty is a successful search that matched nothing.
const (
	StateResults State = "results"
	StateEmpty   State = "empty"
	StateError   State = "error"
)

// Status summarizes a whole retrieval.
type Status string

// Retrieval statuses. Failed is reserved for every family erroring.
const (
	StatusResults Status = "results"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// FamilyOutcome is the result of searching one document family.
type FamilyOutcome struct {
	Family        hit.Family
	State         State
	Results       []hit.Fused
	RerankApplied bool
	// Partial is set when one of the family's two adapters failed.
	Partial bool
	Err     error
}

// Outcome holds one FamilyOutcome per family, in hit.Families() order.
type Outcome struct {
	Families []FamilyOutcome
}

// Status folds the per-family states.
func (o Outcome) Status() Status {
	if len(o.Families) == 0 {
		return StatusEmpty
	}
	failed := 0
	for _, f := range o.Families {
		switch f.State {
		case StateResults:
			return StatusResults
		case StateError:
			failed++
		}
	}
	if failed == len(o.Families) {
		return StatusFailed
	}
	return StatusEmpty
}

// Family returns the outcome for f; a family that was never searched reads as empty.
func (o Outcome) Family(f hit.Family) FamilyOutcome {
	for _, fo := range o.Families {
		if fo.Family == f {
			return fo
		}
	}
	return FamilyOutcome{Family: f, State: StateEmpty}
}

// Results returns the fused results of f.
func (o Outcome) Results(f hit.Family) []hit.Fused { return o.Family(f).Results }

// HitCount is the number of fused results across families.
func (o Outcome) HitCount() int {
	n := 0
	for _, f := range o.Families {
		n += len(f.Results)
	}
	return n
}

// Partial reports whether any adapter or family failed while the retrieval as a whole succeeded.
func (o Outcome) Partial() bool {
	if o.Status() == StatusFailed {
		return false
	}
	for _, f := range o.Families {
		if f.Partial || f.State == StateError {
			return true
		}
	}
	return false
}

// RerankApplied reports whether any family was reranked.
func (o Outcome) RerankApplied() bool {
	for _, f := range o.Families {
		if f.RerankApplied {
			return true
		}
	}
	return false
}

// MaxNormalized is the best normalized fusion score over every result, 0 when there are none.
func (o Outcome) MaxNormalized() float64 {
	best := 0.0
	for _, f := range o.Families {
		for _, r := range f.Results {
			best = max(best, r.Normalized)
		}
	}
	return best
}

// Err joins the family errors.
func (o Outcome) Err() error {
	var errs []error
	for _, f := range o.Families {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Family, f.Err))
		}
	}
	return errors.Join(errs...)
}
