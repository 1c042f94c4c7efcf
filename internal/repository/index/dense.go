package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

type vectorStore interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Dense runs KNN over every embedded field of one family and keeps the best similarity per document.
type Dense struct {
	store    vectorStore
	embedder domain.Embedder
	family   hit.Family
	fields   []string
}

// NewDense creates a dense adapter. fields defaults to DefaultVectorFields(f).
func NewDense(s vectorStore, e domain.Embedder, f hit.Family, fields []string) *Dense {
	if len(fields) == 0 {
		fields = DefaultVectorFields(f)
	}
	return &Dense{store: s, embedder: e, family: f, fields: fields}
}

// Search embeds q.Text once and fans out one KNN per field.
// A failure on any field fails the adapter.
func (d *Dense) Search(ctx context.Context, q Query) ([]hit.Hit, error) {
	expr, err := scoped(q)
	if err != nil {
		return nil, err
	}
	if q.Text == "" {
		return nil, nil
	}

	emb, err := d.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("dense search %s: %w", d.family, err)
	}

	perField := make([]*db.SearchResult, len(d.fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, field := range d.fields {
		g.Go(func() error {
			sr, err := d.store.SearchKNN(gctx, &db.KNNQuery{
				IndexName:    Name(d.family),
				VectorField:  VectorAttr(field),
				Filters:      expr,
				Vector:       emb.Embedding,
				K:            q.TopK,
				ReturnFields: returnFields,
			})
			if err != nil {
				return fmt.Errorf("dense search %s.%s: %w", d.family, field, err)
			}
			perField[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make(map[string]hit.Hit)
	for _, sr := range perField {
		for _, e := range sr.Entries {
			h := toHit(d.family, q.TenantID, e)
			if prev, ok := best[h.ID()]; !ok || h.Score() > prev.Score() {
				best[h.ID()] = h
			}
		}
	}

	hits := make([]hit.Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	slices.SortFunc(hits, func(a, b hit.Hit) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}
