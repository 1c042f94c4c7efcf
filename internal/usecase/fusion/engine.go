package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/filter"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/repository/index"
)

// DefaultTopK is the fused result size when a query leaves it unset.
const DefaultTopK = 10

// candidateFactor widens each adapter's depth so fusion has enough material.
const candidateFactor = 5

// Query is one hybrid search against a single document family.
type Query struct {
	TenantID string
	Family   hit.Family
	Text     string
	Keywords []string
	Filters  filter.Expression
	Sort     []string
	TopK     int
}

// Response is a fused (possibly reranked) ranking plus adapter diagnostics.
type Response struct {
	Results       []hit.Fused
	RerankApplied bool
	// Partial is set when exactly one adapter failed.
	Partial    bool
	LexicalErr error
	DenseErr   error
}

// Options tune fusion and reranking. Zero values fall back to defaults.
type Options struct {
	K       int
	Weights Weights
	Rerank  RerankOptions
}

// Engine runs the lexical and dense adapters of one family and fuses their rankings.
type Engine struct {
	family  hit.Family
	lexical index.Searcher
	dense   index.Searcher
	scorer  Scorer
	opts    Options
	logger  *zap.Logger
}

// NewEngine creates an engine. scorer may be nil, in which case fusion order is final.
func NewEngine(family hit.Family, lexical, dense index.Searcher, scorer Scorer, opts Options, logger *zap.Logger) *Engine {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	opts.Rerank = opts.Rerank.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{family: family, lexical: lexical, dense: dense, scorer: scorer, opts: opts, logger: logger}
}

// Family returns the document family this engine searches.
func (e *Engine) Family() hit.Family { return e.family }

// Search runs both adapters concurrently. It fails only when both adapters fail.
func (e *Engine) Search(ctx context.Context, q Query) (Response, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	aq := index.Query{
		TenantID: q.TenantID,
		Text:     q.Text,
		Terms:    q.Keywords,
		Filters:  q.Filters,
		Sort:     q.Sort,
		TopK:     max(topK*candidateFactor, e.opts.Rerank.TopN),
	}

	var (
		lexHits, denseHits []hit.Hit
		lexErr, denseErr   error
	)
	// Adapter errors are captured, not returned, so one failure never cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		lexHits, lexErr = e.run(ctx, "lexical", e.lexical, aq)
		return nil
	})
	g.Go(func() error {
		denseHits, denseErr = e.run(ctx, "dense", e.dense, aq)
		return nil
	})
	_ = g.Wait()

	resp := Response{LexicalErr: lexErr, DenseErr: denseErr}
	if lexErr != nil && denseErr != nil {
		return resp, fmt.Errorf("%s search: %w", e.family, errors.Join(lexErr, denseErr))
	}
	resp.Partial = lexErr != nil || denseErr != nil
	if resp.Partial {
		e.logger.Warn("hybrid search degraded to one adapter",
			zap.String("family", string(e.family)),
			zap.NamedError("lexical_error", lexErr),
			zap.NamedError("dense_error", denseErr),
		)
	}

	// A failed adapter drops out of the normalization ceiling.
	w := e.opts.Weights
	if lexErr != nil {
		w.Lexical = 0
	}
	if denseErr != nil {
		w.Dense = 0
	}
	fused := Fuse(lexHits, denseHits, w, e.opts.K)
	fused, resp.RerankApplied = e.rerank(ctx, q, fused)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	resp.Results = fused
	return resp, nil
}

func (e *Engine) run(ctx context.Context, adapter string, s index.Searcher, q index.Query) ([]hit.Hit, error) {
	if s == nil {
		return nil, fmt.Errorf("%s adapter not configured: %w", adapter, domain.ErrRetrievalUnavailable)
	}
	start := time.Now()
	hits, err := s.Search(ctx, q)
	metrics.AdapterDuration.WithLabelValues(string(e.family), adapter).Observe(time.Since(start).Seconds())

	status := "results"
	switch {
	case err != nil:
		status = "error"
	case len(hits) == 0:
		status = "empty"
	}
	metrics.AdapterRequestsTotal.WithLabelValues(string(e.family), adapter, status).Inc()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", adapter, err)
	}
	return hits, nil
}

func (e *Engine) rerank(ctx context.Context, q Query, fused []hit.Fused) ([]hit.Fused, bool) {
	if e.scorer == nil || len(fused) == 0 {
		metrics.RerankTotal.WithLabelValues("skipped").Inc()
		return fused, false
	}
	query := q.Text
	if strings.TrimSpace(query) == "" {
		query = strings.Join(q.Keywords, " ")
	}
	out, applied := Rerank(ctx, e.scorer, query, fused, e.opts.Rerank)
	if !applied {
		metrics.RerankTotal.WithLabelValues("fallback").Inc()
		e.logger.Warn("rerank unavailable, keeping fusion order", zap.String("family", string(e.family)))
		return out, false
	}
	metrics.RerankTotal.WithLabelValues("applied").Inc()
	return out, true
}
