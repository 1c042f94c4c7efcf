package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/filter"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

func TestLexical_ScopesToTenant(t *testing.T) {
	var got *db.TextQuery
	ms := &mockStore{searchBM25Fn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			entry("ticketlens:case:acme:C-42", 3.2, "title", "API timeout after deploy"),
		}}, nil
	}}

	prio, _ := filter.NewMatch("priority", "high")
	userFilters, _ := filter.NewExpression([]filter.Condition{prio}, nil, nil)

	hits, err := NewLexical(ms, hit.Case).Search(context.Background(), Query{
		TenantID: "acme",
		Terms:    []string{"api", "timeout"},
		Filters:  userFilters,
		Sort:     []string{"created_at", "relevance"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	must := got.Filters.Must()
	if len(must) != 2 || must[0].Key() != "tenant_id" || must[0].Match() != "acme" {
		t.Fatalf("expected tenant predicate first, got %+v", must)
	}
	if got.IndexName != "ticketlens:case:idx" || got.SortBy != "created_at" {
		t.Errorf("unexpected query: %+v", got)
	}
	if len(hits) != 1 || hits[0].ID() != "C-42" || hits[0].Family() != hit.Case {
		t.Errorf("unexpected hits: %+v", hits)
	}
	if hits[0].Payload()["title"] != "API timeout after deploy" {
		t.Errorf("payload not carried: %+v", hits[0].Payload())
	}
}

func TestLexical_RelevanceSortDoesNotOverride(t *testing.T) {
	var got *db.TextQuery
	ms := &mockStore{searchBM25Fn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{}, nil
	}}
	_, err := NewLexical(ms, hit.Procedure).Search(context.Background(), Query{
		TenantID: "acme", Terms: []string{"vpn"}, Sort: []string{"relevance", "created_at"}, TopK: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SortBy != "" {
		t.Errorf("expected BM25 order, got SORTBY %q", got.SortBy)
	}
}

func TestLexical_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := NewLexical(&mockStore{}, hit.Case).Search(ctx, Query{Terms: []string{"x"}, TopK: 1}); !errors.Is(err, ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}

	_, err := NewLexical(&mockStore{noText: true}, hit.Case).Search(ctx, Query{TenantID: "a", Terms: []string{"x"}, TopK: 1})
	if !errors.Is(err, domain.ErrKeywordSearchNotSupported) {
		t.Errorf("expected ErrKeywordSearchNotSupported, got %v", err)
	}

	backend := errors.New("LOADING")
	ms := &mockStore{searchBM25Fn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		return nil, backend
	}}
	if _, err := NewLexical(ms, hit.Case).Search(ctx, Query{TenantID: "a", Terms: []string{"x"}, TopK: 1}); !errors.Is(err, backend) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestLexical_NoTermsIsEmpty(t *testing.T) {
	hits, err := NewLexical(&mockStore{}, hit.Case).Search(context.Background(), Query{TenantID: "a", TopK: 1})
	if err != nil || len(hits) != 0 {
		t.Errorf("expected empty result, got %v, %v", hits, err)
	}
}

func TestDense_MergesFieldsByBestSimilarity(t *testing.T) {
	ms := &mockStore{searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		switch q.VectorField {
		case "symptom_vector":
			return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
				entry("ticketlens:case:acme:C-1", 0.6),
				entry("ticketlens:case:acme:C-2", 0.9),
			}}, nil
		case "cause_vector":
			return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
				entry("ticketlens:case:acme:C-1", 0.95),
			}}, nil
		default:
			return &db.SearchResult{}, nil
		}
	}}
	emb := &mockEmbedder{}

	hits, err := NewDense(ms, emb, hit.Case, nil).Search(context.Background(), Query{
		TenantID: "acme", Text: "api timeout", TopK: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb.texts) != 1 {
		t.Errorf("query must be embedded once, got %d", len(emb.texts))
	}
	if len(ms.knnQueries) != 3 {
		t.Errorf("expected one KNN per field, got %d", len(ms.knnQueries))
	}
	for _, q := range ms.knnQueries {
		if q.Filters.Must()[0].Match() != "acme" {
			t.Errorf("KNN on %s not tenant scoped", q.VectorField)
		}
	}
	if len(hits) != 2 || hits[0].ID() != "C-1" || hits[0].Score() != 0.95 || hits[1].ID() != "C-2" {
		t.Errorf("unexpected merge: %+v", hits)
	}
}

func TestDense_FieldErrorFailsAdapter(t *testing.T) {
	ms := &mockStore{searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.VectorField == "procedure_vector" {
			return nil, errors.New("timeout")
		}
		return &db.SearchResult{}, nil
	}}
	_, err := NewDense(ms, &mockEmbedder{}, hit.Procedure, nil).Search(context.Background(), Query{
		TenantID: "acme", Text: "reset password", TopK: 5,
	})
	if err == nil || !strings.Contains(err.Error(), "procedure.procedure") {
		t.Errorf("expected field error, got %v", err)
	}
}

func TestDense_EmbedError(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	_, err := NewDense(&mockStore{}, emb, hit.Case, nil).Search(context.Background(), Query{TenantID: "a", Text: "x", TopK: 1})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected embedding error, got %v", err)
	}
}

func TestBootstrap_CreatesMissingOnly(t *testing.T) {
	ms := &mockStore{existing: map[string]bool{Name(hit.Case): true}}
	if err := Bootstrap(context.Background(), ms, 8, nil, zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.created) != 1 || ms.created[0] != Name(hit.Procedure) {
		t.Errorf("unexpected created indexes: %v", ms.created)
	}
}

func TestDefinition_HasVectorPerField(t *testing.T) {
	def, err := Definition(hit.Case, 8, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vectors := 0
	for _, f := range def.Fields {
		if f.Type == db.IndexFieldVector {
			vectors++
		}
	}
	if vectors != 3 {
		t.Errorf("expected 3 vector fields, got %d", vectors)
	}
}
