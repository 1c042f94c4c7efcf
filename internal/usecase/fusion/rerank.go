package fusion

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

// Rerank defaults.
const (
	DefaultRerankTopN    = 20
	DefaultRerankTopK    = 10
	DefaultRerankTimeout = 5 * time.Second
)

// Candidate is one (id, content) pair sent to the scorer.
type Candidate struct {
	ID      string
	Content string
}

// Scored is the scorer's relevance for one candidate.
type Scored struct {
	ID    string
	Score float64
}

// Scorer is a stateless cross-encoder relevance model.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []Candidate) ([]Scored, error)
}

// RerankOptions bound the reranked slice.
type RerankOptions struct {
	TopN    int
	TopK    int
	Timeout time.Duration
}

func (o RerankOptions) withDefaults() RerankOptions {
	if o.TopN <= 0 {
		o.TopN = DefaultRerankTopN
	}
	if o.TopK <= 0 {
		o.TopK = DefaultRerankTopK
	}
	o.TopK = min(o.TopK, o.TopN)
	if o.Timeout <= 0 {
		o.Timeout = DefaultRerankTimeout
	}
	return o
}

// Rerank sends the fused top-N to s. The scorer's best K lead, in score order; every other
// candidate follows in fusion order. Any scorer failure returns fused untouched and false.
func Rerank(ctx context.Context, s Scorer, query string, fused []hit.Fused, opts RerankOptions) ([]hit.Fused, bool) {
	if s == nil || len(fused) == 0 {
		return fused, false
	}
	opts = opts.withDefaults()

	head := fused[:min(opts.TopN, len(fused))]
	candidates := make([]Candidate, len(head))
	position := make(map[string]int, len(head))
	for i, f := range head {
		candidates[i] = Candidate{ID: f.ID, Content: f.Content()}
		position[f.ID] = i
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	scored, err := s.Score(ctx, query, candidates)
	if err != nil || ctx.Err() != nil {
		return fused, false
	}

	valid := make([]Scored, 0, len(scored))
	seen := make(map[string]bool, len(scored))
	for _, sc := range scored {
		if _, ok := position[sc.ID]; ok && !seen[sc.ID] {
			seen[sc.ID] = true
			valid = append(valid, sc)
		}
	}
	if len(valid) == 0 {
		return fused, false
	}
	slices.SortStableFunc(valid, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(position[a.ID], position[b.ID])
	})
	valid = valid[:min(opts.TopK, len(valid))]

	out := make([]hit.Fused, 0, len(fused))
	promoted := make(map[string]bool, len(valid))
	for _, sc := range valid {
		f := head[position[sc.ID]]
		score := sc.Score
		f.RerankScore = &score
		out = append(out, f)
		promoted[sc.ID] = true
	}
	for _, f := range fused {
		if !promoted[f.ID] {
			out = append(out, f)
		}
	}
	renumber(out)
	return out, true
}
