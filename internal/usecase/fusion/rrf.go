// Package fusion merges lexical and dense rankings with Reciprocal Rank Fusion and
// optionally reorders the head of the fused list with a cross-encoder.
package fusion

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

// DefaultK is the RRF rank damping constant.
const DefaultK = 60

// Weights scales each list's contribution.
type Weights struct {
	Dense   float64
	Lexical float64
}

// DefaultWeights gives both lists equal say.
func DefaultWeights() Weights { return Weights{Dense: 1, Lexical: 1} }

// Fuse sums weight/(k+rank) per document over both lists (rank is 1-based) and sorts by the sum.
// Ties go to the better best-rank, then to the smaller ID. A document repeated within one list
// counts once, at its first position. Normalized divides by the best attainable score under w,
// so an adapter weighted 0 does not lower the ceiling for the other.
func Fuse(lexical, dense []hit.Hit, w Weights, k int) []hit.Fused {
	if k <= 0 {
		k = DefaultK
	}

	byID := make(map[string]*hit.Fused, len(lexical)+len(dense))
	order := make([]string, 0, len(lexical)+len(dense))

	accumulate := func(list []hit.Hit, weight float64) {
		seen := make(map[string]bool, len(list))
		for i, h := range list {
			if seen[h.ID()] {
				continue
			}
			seen[h.ID()] = true
			rank := i + 1

			f, ok := byID[h.ID()]
			if !ok {
				f = &hit.Fused{ID: h.ID(), Family: h.Family(), Payload: h.Payload(), BestRank: rank}
				byID[h.ID()] = f
				order = append(order, h.ID())
			}
			f.RRFScore += weight / float64(k+rank)
			f.BestRank = min(f.BestRank, rank)
			if len(f.Payload) == 0 {
				f.Payload = h.Payload()
			}
		}
	}
	accumulate(lexical, w.Lexical)
	accumulate(dense, w.Dense)

	ceiling := (w.Dense + w.Lexical) / float64(k+1)

	out := make([]hit.Fused, 0, len(order))
	for _, id := range order {
		f := *byID[id]
		if ceiling > 0 {
			f.Normalized = f.RRFScore / ceiling
		}
		out = append(out, f)
	}

	slices.SortFunc(out, compareFused)
	renumber(out)
	return out
}

func compareFused(a, b hit.Fused) int {
	if c := cmp.Compare(b.RRFScore, a.RRFScore); c != 0 {
		return c
	}
	if c := cmp.Compare(a.BestRank, b.BestRank); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func renumber(list []hit.Fused) {
	for i := range list {
		list[i].Rank = i + 1
	}
}
