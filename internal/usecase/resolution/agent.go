// Package resolution drafts a proposal from a ticket and, when available, retrieved evidence.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/domain/ticket"
	"github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
	"github.com/kailas-cloud/ticketlens/internal/usecase/retrieval"
)

// Defaults.
const (
	DefaultRelevanceFloor  = 0.55
	DefaultMaxOutputTokens = 1024
)

const plainTextReasoning = "model output was not structured; draft kept as plain text"

// Options tune the agent.
type Options struct {
	// RelevanceFloor is the normalized fusion score at or above which synthesis confidence is high.
	RelevanceFloor  float64
	KeepTurns       int
	MaxOutputTokens int
	Retry           resilience.RetryConfig
}

// Input is everything one resolution needs. Evidence is nil when retrieval was skipped.
type Input struct {
	Tenant   tenant.Config
	Ticket   ticket.Ticket
	Context  intent.SearchContext
	Evidence *retrieval.Outcome
	// Mode may be left empty to derive it from Evidence.
	Mode proposal.Mode
}

// Agent turns a ticket into a draft proposal.
type Agent struct {
	model   Model
	counter TokenCounter
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an agent. counter may be nil, in which case tokens are approximated.
func New(model Model, counter TokenCounter, opts Options, log *zap.Logger) *Agent {
	if opts.RelevanceFloor <= 0 {
		opts.RelevanceFloor = DefaultRelevanceFloor
	}
	if opts.KeepTurns <= 0 {
		opts.KeepTurns = DefaultKeepTurns
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if counter == nil {
		counter = ApproxCounter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{model: model, counter: counter, opts: opts, logger: log, now: time.Now}
}

// ModeFor picks the resolution mode for a retrieval outcome.
func ModeFor(evidence *retrieval.Outcome) proposal.Mode {
	switch {
	case evidence == nil:
		return proposal.Direct
	case evidence.Status() == retrieval.StatusFailed:
		return proposal.Fallback
	case evidence.HitCount() > 0:
		return proposal.Synthesis
	default:
		return proposal.Direct
	}
}

// Resolve drafts version 1 of a proposal. The result is validated but not persisted.
func (a *Agent) Resolve(ctx context.Context, in Input) (proposal.Proposal, error) {
	mode := in.Mode
	if mode == "" || (mode == proposal.Synthesis && ModeFor(in.Evidence) != proposal.Synthesis) {
		mode = ModeFor(in.Evidence)
	}

	var (
		user    string
		ceiling = proposal.Low
		content proposal.Content
	)
	switch mode {
	case proposal.Synthesis:
		limit := in.Tenant.AnalysisDepth.EvidenceLimit()
		cases := head(in.Evidence.Results(hit.Case), limit)
		procedures := head(in.Evidence.Results(hit.Procedure), limit)

		ceiling = proposal.Medium
		if in.Evidence.MaxNormalized() >= a.opts.RelevanceFloor {
			ceiling = proposal.High
		}
		text, _ := chunkTicket(in.Ticket, in.Tenant.TokenBudget(), a.opts.KeepTurns, a.counter)
		user = synthesisPrompt(text, cases, procedures)
		content.SimilarCases = references(cases)
		content.KBReferences = references(procedures)
	case proposal.Direct, proposal.Fallback:
		text, chunked := chunkTicket(in.Ticket, in.Tenant.TokenBudget(), a.opts.KeepTurns, a.counter)
		if chunked {
			logger.FromContextOr(ctx, a.logger).Debug("ticket chunked to fit token budget",
				zap.String("ticket_id", in.Ticket.ID), zap.Int("budget", in.Tenant.TokenBudget()))
		}
		user = directPrompt(text, mode == proposal.Fallback)
	default:
		return proposal.Proposal{}, fmt.Errorf("unknown resolution mode %q: %w", mode, domain.ErrValidation)
	}

	out, err := a.generate(ctx, user)
	if err != nil {
		return proposal.Proposal{}, err
	}
	content.DraftResponse = out.DraftResponse
	content.FieldUpdates = out.FieldUpdates
	content.Confidence = confidence(out.Confidence, ceiling)
	content.Mode = mode
	content.Reasoning = withTrail(evidenceTrail(mode, content.SimilarCases, content.KBReferences, in.Evidence), out.Reasoning)

	p, err := proposal.NewDraft(in.Tenant.TenantID, in.Ticket.ID, content, a.now())
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("validate draft: %w", err)
	}
	return p, nil
}

// Refine regenerates the content of prior following a reviewer instruction. Mode and references
// carry over; confidence can only stay or drop.
func (a *Agent) Refine(ctx context.Context, tenantID string, prior proposal.Proposal, instruction string) (proposal.Content, error) {
	if strings.TrimSpace(instruction) == "" {
		return proposal.Content{}, fmt.Errorf("refine instruction is required: %w", domain.ErrValidation)
	}
	if prior.TenantID != tenantID {
		return proposal.Content{}, fmt.Errorf("proposal %s: %w", prior.ID, domain.ErrProposalNotFound)
	}

	out, err := a.generate(ctx, refinePrompt(prior, instruction))
	if err != nil {
		return proposal.Content{}, err
	}
	trail := fmt.Sprintf("refined from v%d (%s); %s", prior.Version, prior.ID,
		evidenceTrail(prior.Mode, prior.SimilarCases, prior.KBReferences, nil))
	return proposal.Content{
		DraftResponse: out.DraftResponse,
		FieldUpdates:  out.FieldUpdates,
		Reasoning:     withTrail(trail, out.Reasoning),
		Confidence:    confidence(out.Confidence, prior.Confidence),
		Mode:          prior.Mode,
		SimilarCases:  prior.SimilarCases,
		KBReferences:  prior.KBReferences,
	}, nil
}

// generate calls the model, retries once with a stricter instruction when the answer is not
// valid JSON, and finally keeps the raw text as a low-confidence draft.
func (a *Agent) generate(ctx context.Context, user string) (output, error) {
	raw, err := a.call(ctx, Prompt{System: systemPrompt, User: user, MaxTokens: a.opts.MaxOutputTokens})
	if err != nil {
		return output{}, err
	}
	out, perr := parseOutput(raw)
	if perr == nil {
		return out, nil
	}

	log := logger.FromContextOr(ctx, a.logger)
	log.Warn("malformed model output, retrying with strict format", zap.Error(perr))

	raw, err = a.call(ctx, Prompt{System: systemPrompt + strictSuffix, User: user, MaxTokens: a.opts.MaxOutputTokens})
	if err != nil {
		return output{}, err
	}
	if out, perr = parseOutput(raw); perr == nil {
		return out, nil
	}

	text := stripFences(raw)
	if strings.TrimSpace(text) == "" {
		return output{}, fmt.Errorf("empty model output: %w", domain.ErrMalformedOutput)
	}
	log.Warn("model output still malformed, keeping plain text draft", zap.Error(perr))
	return output{DraftResponse: text, Reasoning: plainTextReasoning, Confidence: string(proposal.Low)}, nil
}

func (a *Agent) call(ctx context.Context, p Prompt) (string, error) {
	retry := a.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(logger.FromContextOr(ctx, a.logger), "resolution_model")
	}
	raw, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		return a.model.Generate(ctx, p)
	})
	if err != nil {
		if errors.Is(err, domain.ErrModelProviderError) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrModelProviderError, err)
	}
	return raw, nil
}

// confidence parses the model's self-assessment and caps it. Unknown values take the ceiling.
func confidence(s string, ceiling proposal.Confidence) proposal.Confidence {
	c, ok := proposal.ParseConfidence(s)
	if !ok {
		return ceiling
	}
	return c.Cap(ceiling)
}

// evidenceTrail names the evidence a draft relied on. ev may be nil.
func evidenceTrail(mode proposal.Mode, cases, procedures []proposal.Reference, ev *retrieval.Outcome) string {
	switch mode {
	case proposal.Direct:
		return "direct: no evidence used"
	case proposal.Fallback:
		return "fallback: retrieval unavailable, no evidence used"
	}
	parts := []string{
		"synthesis: cases " + referenceIDs(cases),
		"procedures " + referenceIDs(procedures),
	}
	if ev != nil {
		if ev.RerankApplied() {
			parts = append(parts, "reranked")
		}
		if ev.Partial() {
			parts = append(parts, "partial retrieval")
		}
	}
	return strings.Join(parts, "; ")
}

func referenceIDs(refs []proposal.Reference) string {
	if len(refs) == 0 {
		return "none"
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return "[" + strings.Join(ids, ", ") + "]"
}

// withTrail puts the audit trail ahead of the model's own reasoning.
func withTrail(trail, modelReasoning string) string {
	if r := strings.TrimSpace(modelReasoning); r != "" {
		return trail + ". " + r
	}
	return trail
}

func head(list []hit.Fused, n int) []hit.Fused {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func references(list []hit.Fused) []proposal.Reference {
	if len(list) == 0 {
		return nil
	}
	out := make([]proposal.Reference, len(list))
	for i, f := range list {
		out[i] = proposal.Reference{ID: f.ID, Title: f.Title(), Score: f.Normalized}
	}
	return out
}
