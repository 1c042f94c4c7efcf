package db

import "github.com/kailas-cloud/ticketlens/internal/domain/search/filter"

// DefaultVectorField is the vector attribute KNN queries target when none is set.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search. Terms are OR-ed.
type TextQuery struct {
	IndexName    string
	Terms        []string
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
	// SortBy overrides BM25 ordering with a SORTABLE field (descending).
	SortBy string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
