// Package workflow runs one ticket analysis end to end and reports progress as an event stream.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/event"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/domain/ticket"
	"github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
	"github.com/kailas-cloud/ticketlens/internal/usecase/retrieval"
	"github.com/kailas-cloud/ticketlens/internal/usecase/router"
)

// Defaults.
const (
	DefaultDeadline          = 60 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Request starts one analysis. TenantID comes from the authenticated caller, never from the body.
type Request struct {
	TenantID string
	Platform string
	TicketID string
	// Query overrides the ticket text for routing and retrieval.
	Query     string
	Actor     string
	ActorRole string
}

// Options tune the orchestrator.
type Options struct {
	Deadline          time.Duration
	HeartbeatInterval time.Duration
}

// Orchestrator wires router, retrieval, resolution and persistence.
type Orchestrator struct {
	tenants   TenantConfigs
	tickets   TicketSource
	retriever Retriever
	resolver  Resolver
	store     ProposalStore
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an orchestrator. tickets may be nil when every request carries a Query.
func New(
	tenants TenantConfigs, tickets TicketSource, retriever Retriever, resolver Resolver, store ProposalStore,
	opts Options, log *zap.Logger,
) *Orchestrator {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		tenants: tenants, tickets: tickets, retriever: retriever, resolver: resolver, store: store,
		opts: opts, logger: log, now: time.Now,
	}
}

// Analyze runs the workflow in the background. The channel is closed after the final or error
// event, or as soon as ctx is canceled. Consumers must drain it or cancel ctx.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) <-chan event.Event {
	s := newStream(ctx, o.now)

	go func() {
		started := o.now()
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.heartbeat(done, o.opts.HeartbeatInterval, started)
		}()

		mode, result := o.run(ctx, s, req, started)

		close(done)
		wg.Wait()
		close(s.out)
		metrics.WorkflowDuration.WithLabelValues(string(mode), result).Observe(o.now().Sub(started).Seconds())
	}()

	return s.out
}

// run executes the stages and returns the mode reached and a result label for metrics.
func (o *Orchestrator) run(parent context.Context, s *stream, req Request, started time.Time) (proposal.Mode, string) {
	ctx, cancel := context.WithTimeout(parent, o.opts.Deadline)
	defer cancel()

	log := logger.FromContextOr(parent, o.logger).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("ticket_id", req.TicketID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	fail := func(mode proposal.Mode, err error) (proposal.Mode, string) {
		if parent.Err() != nil {
			log.Info("analysis canceled by caller", zap.Error(err))
			return mode, "canceled"
		}
		msg, recoverable := describe(ctx, err)
		log.Warn("analysis failed", zap.Error(err), zap.Bool("recoverable", recoverable))
		s.emit(event.NewError(o.now(), msg, recoverable))
		if ctx.Err() != nil {
			return mode, "timeout"
		}
		return mode, "error"
	}

	if req.TenantID == "" {
		return fail("", domain.ErrUnauthorized)
	}
	cfg, err := o.tenants.GetConfig(ctx, req.TenantID, req.Platform)
	if err != nil {
		return fail("", fmt.Errorf("load tenant config: %w", err))
	}

	tk, err := o.ticket(ctx, cfg, req)
	if err != nil {
		return fail("", err)
	}

	text := strings.TrimSpace(req.Query)
	if text == "" {
		text = tk.Text()
	}
	decision := router.Route(router.Request{Text: text, ActorRole: req.ActorRole, Now: started}, cfg)
	name, reason, embeddingMode, sc := router.Describe(decision)
	if !s.emit(event.NewRouteDecision(o.now(), event.RouteDecisionPayload{
		Decision: name, Reasoning: reason, EmbeddingMode: embeddingMode, Context: sc,
	})) {
		return "", "canceled"
	}

	in := resolution.Input{Tenant: cfg, Ticket: tk, Context: sc, Mode: proposal.Direct}
	switch decision.(type) {
	case router.Synthesis:
		if !s.emit(event.NewRetrieverStart(o.now(), embeddingMode)) {
			return "", "canceled"
		}
		outcome := o.retriever.Retrieve(ctx, cfg, sc)
		if ctx.Err() != nil {
			return fail("", ctx.Err())
		}
		in.Evidence = &outcome
		in.Mode = resolution.ModeFor(&outcome)

		var ev event.Event
		if outcome.Status() == retrieval.StatusFailed {
			log.Warn("retrieval unavailable, falling back to direct analysis", zap.Error(outcome.Err()))
			ev = event.NewRetrieverFallback(o.now(), fallbackReason(outcome), string(proposal.Direct))
		} else {
			ev = event.NewRetrieverResults(o.now(), event.RetrieverResultsPayload{
				SimilarCases:  outcome.Results(hit.Case),
				KBArticles:    outcome.Results(hit.Procedure),
				RerankApplied: outcome.RerankApplied(),
				Partial:       outcome.Partial(),
			})
		}
		if !s.emit(ev) {
			return in.Mode, "canceled"
		}
	case router.Direct:
	}

	if !s.emit(event.NewResolutionStart(o.now(), in.Mode)) {
		return in.Mode, "canceled"
	}
	p, err := o.resolver.Resolve(ctx, in)
	if err != nil {
		return fail(in.Mode, fmt.Errorf("resolve: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(in.Mode, err)
	}

	p, err = o.store.Create(ctx, cfg.TenantID, p)
	if err != nil {
		return fail(p.Mode, fmt.Errorf("persist proposal: %w", err))
	}
	if !s.emit(event.NewResolutionComplete(o.now(), p)) {
		return p.Mode, "canceled"
	}

	elapsed := o.now().Sub(started)
	s.emit(event.NewFinal(o.now(), event.FinalPayload{ProposalID: p.ID, Mode: p.Mode, ElapsedMS: elapsed.Milliseconds()}))
	log.Info("analysis finished",
		zap.String("proposal_id", p.ID),
		zap.String("mode", string(p.Mode)),
		zap.String("confidence", string(p.Confidence)),
		zap.Duration("elapsed", elapsed),
	)
	return p.Mode, "ok"
}

// ticket fetches the ticket; a free-text Query stands in when the ticket cannot be read.
func (o *Orchestrator) ticket(ctx context.Context, cfg tenant.Config, req Request) (ticket.Ticket, error) {
	query := strings.TrimSpace(req.Query)
	standIn := ticket.Ticket{ID: req.TicketID, Subject: query, CreatedAt: o.now()}
	if o.tickets == nil {
		if query == "" {
			return ticket.Ticket{}, fmt.Errorf("ticket %s: no ticket source and no query: %w", req.TicketID, domain.ErrValidation)
		}
		return standIn, nil
	}

	tk, err := o.tickets.Fetch(ctx, cfg, req.TicketID)
	if err != nil {
		if query != "" && !errors.Is(err, domain.ErrUnauthorized) {
			logger.FromContextOr(ctx, o.logger).Warn("ticket fetch failed, analyzing query only", zap.Error(err))
			return standIn, nil
		}
		return ticket.Ticket{}, fmt.Errorf("fetch ticket %s: %w", req.TicketID, err)
	}
	return tk, nil
}

func fallbackReason(o retrieval.Outcome) string {
	if err := o.Err(); err != nil {
		return "retrieval unavailable: " + err.Error()
	}
	return "retrieval unavailable"
}

// describe turns an error into the message and recoverability of an error event.
func describe(ctx context.Context, err error) (string, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "analysis timed out", true
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized", false
	case errors.Is(err, domain.ErrTenantNotFound):
		return "tenant is not configured for this platform", false
	case errors.Is(err, domain.ErrTicketNotFound):
		return "ticket not found", false
	case errors.Is(err, domain.ErrValidation):
		return "draft failed validation: " + err.Error(), true
	case errors.Is(err, domain.ErrModelProviderError), errors.Is(err, domain.ErrMalformedOutput):
		return "resolution model unavailable", true
	default:
		return "analysis failed", true
	}
}
