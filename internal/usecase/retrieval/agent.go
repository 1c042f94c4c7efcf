// Package retrieval runs the hybrid search over every document family for one request.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/usecase/fusion"
)

// DefaultDeadline bounds a whole retrieval.
const DefaultDeadline = 30 * time.Second

// Options configure the agent.
type Options struct {
	Deadline time.Duration
	// TopK is the fused result size per family.
	TopK int
}

// Agent fans a search context out to every family engine.
type Agent struct {
	engines  map[hit.Family]Searcher
	deadline time.Duration
	topK     int
	logger   *zap.Logger
}

// New creates an agent. A family without an engine always reports an error.
func New(engines map[hit.Family]Searcher, opts Options, log *zap.Logger) *Agent {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.TopK <= 0 {
		opts.TopK = fusion.DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{engines: engines, deadline: opts.Deadline, topK: opts.TopK, logger: log}
}

type familyResult struct {
	idx     int
	outcome FamilyOutcome
}

// Retrieve searches all families concurrently. It never returns an error: failures are
// recorded per family and summarized by Outcome.Status. A family still running when the
// deadline passes is recorded as failed.
func (a *Agent) Retrieve(ctx context.Context, cfg tenant.Config, sc intent.SearchContext) Outcome {
	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	families := hit.Families()
	out := Outcome{Families: make([]FamilyOutcome, len(families))}

	expr, err := sc.Filters.Expression()
	if err != nil {
		for i, f := range families {
			out.Families[i] = FamilyOutcome{Family: f, State: StateError, Err: fmt.Errorf("build filters: %w", err)}
		}
		a.record(ctx, cfg, out)
		return out
	}

	results := make(chan familyResult, len(families))
	for i, f := range families {
		q := fusion.Query{
			TenantID: cfg.TenantID,
			Family:   f,
			Text:     sc.Query(),
			Keywords: sc.Keywords,
			Filters:  expr,
			Sort:     sc.SortCriteria,
			TopK:     a.topK,
		}
		go func() {
			results <- familyResult{idx: i, outcome: a.search(ctx, f, q)}
		}()
	}

	done := make([]bool, len(families))
collect:
	for range families {
		select {
		case r := <-results:
			out.Families[r.idx] = r.outcome
			done[r.idx] = true
		case <-ctx.Done():
			break collect
		}
	}
	for i, f := range families {
		if !done[i] {
			out.Families[i] = FamilyOutcome{
				Family: f, State: StateError,
				Err: fmt.Errorf("%s still pending: %w: %w", f, domain.ErrRetrievalUnavailable, ctx.Err()),
			}
		}
	}

	a.record(ctx, cfg, out)
	return out
}

func (a *Agent) search(ctx context.Context, f hit.Family, q fusion.Query) FamilyOutcome {
	engine, ok := a.engines[f]
	if !ok || engine == nil {
		return FamilyOutcome{
			Family: f, State: StateError,
			Err: fmt.Errorf("no engine for family %s: %w", f, domain.ErrRetrievalUnavailable),
		}
	}
	resp, err := engine.Search(ctx, q)
	if err != nil {
		return FamilyOutcome{Family: f, State: StateError, Err: err}
	}
	state := StateResults
	if len(resp.Results) == 0 {
		state = StateEmpty
	}
	return FamilyOutcome{
		Family:        f,
		State:         state,
		Results:       resp.Results,
		RerankApplied: resp.RerankApplied,
		Partial:       resp.Partial,
	}
}

func (a *Agent) record(ctx context.Context, cfg tenant.Config, out Outcome) {
	status := out.Status()
	metrics.RetrievalOutcomesTotal.WithLabelValues(string(status)).Inc()

	log := logger.FromContextOr(ctx, a.logger)
	fields := []zap.Field{
		zap.String("tenant_id", cfg.TenantID),
		zap.String("status", string(status)),
		zap.Int("hits", out.HitCount()),
		zap.Bool("partial", out.Partial()),
	}
	if status == StatusFailed {
		log.Warn("retrieval failed in every family", append(fields, zap.Error(out.Err()))...)
		return
	}
	log.Debug("retrieval finished", fields...)
}
