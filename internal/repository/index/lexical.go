package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

type textStore interface {
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Lexical runs BM25 over the __content TEXT field of one family.
type Lexical struct {
	store  textStore
	family hit.Family
}

// NewLexical creates a lexical adapter for a family.
func NewLexical(s textStore, f hit.Family) *Lexical {
	return &Lexical{store: s, family: f}
}

// Search returns hits in BM25 order (or by the leading sortable criterion).
// No terms means nothing to match: an empty result, not an error.
func (l *Lexical) Search(ctx context.Context, q Query) ([]hit.Hit, error) {
	expr, err := scoped(q)
	if err != nil {
		return nil, err
	}
	if !l.store.SupportsTextSearch(ctx) {
		return nil, domain.ErrKeywordSearchNotSupported
	}

	terms := q.Terms
	if len(terms) == 0 {
		terms = strings.Fields(q.Text)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	sr, err := l.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    Name(l.family),
		Terms:        terms,
		Filters:      expr,
		TopK:         q.TopK,
		ReturnFields: returnFields,
		SortBy:       sortField(q.Sort),
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search %s: %w", l.family, err)
	}

	hits := make([]hit.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, toHit(l.family, q.TenantID, e))
	}
	return hits, nil
}
