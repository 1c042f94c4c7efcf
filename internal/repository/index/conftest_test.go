package index

import (
	"context"
	"sync"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain"
)

// mockStore implements the consumer interfaces for tests.
type mockStore struct {
	mu sync.Mutex

	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	noText       bool

	knnQueries []*db.KNNQuery
	existing   map[string]bool
	created    []string
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.mu.Lock()
	m.knnQueries = append(m.knnQueries, q)
	m.mu.Unlock()
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SupportsTextSearch(context.Context) bool { return !m.noText }

func (m *mockStore) IndexExists(_ context.Context, name string) (bool, error) {
	return m.existing[name], nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def.Name)
	return nil
}

type mockEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func entry(key string, score float64, fields ...string) db.SearchEntry {
	m := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		m[fields[i]] = fields[i+1]
	}
	return db.SearchEntry{Key: key, Score: score, Fields: m}
}
