// Package event defines the progress events an analysis run emits to its caller.
// Events are immutable values; consumers must ignore types they do not know.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
)

// Type names an event on the wire.
type Type string

// Event types in the order a successful run emits them. Heartbeat and Error may appear anywhere.
const (
	RouteDecision      Type = "route_decision"
	RetrieverStart     Type = "retriever_start"
	RetrieverResults   Type = "retriever_results"
	RetrieverFallback  Type = "retriever_fallback"
	ResolutionStart    Type = "resolution_start"
	ResolutionComplete Type = "resolution_complete"
	Final              Type = "final"
	Heartbeat          Type = "heartbeat"
	Error              Type = "error"
)

// Event is one progress notification.
type Event struct {
	typ     Type
	at      time.Time
	payload any
}

// Type returns the event type.
func (e Event) Type() Type { return e.typ }

// At returns the emission time.
func (e Event) At() time.Time { return e.at }

// Payload returns the typed payload (one of the *Payload structs in this package).
func (e Event) Payload() any { return e.payload }

// Data returns the JSON encoding of the payload.
func (e Event) Data() ([]byte, error) {
	b, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.typ, err)
	}
	return b, nil
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	if e.typ == Final {
		return true
	}
	if p, ok := e.payload.(ErrorPayload); ok {
		return !p.Recoverable
	}
	return false
}

// RouteDecisionPayload reports the router's choice.
type RouteDecisionPayload struct {
	Decision      string               `json:"decision"`
	Reasoning     string               `json:"reasoning"`
	EmbeddingMode string               `json:"embedding_mode"`
	Context       intent.SearchContext `json:"search_context"`
}

// RetrieverStartPayload announces the retrieval step.
type RetrieverStartPayload struct {
	Mode string `json:"mode"`
}

// RetrieverResultsPayload carries the fused rankings per family.
type RetrieverResultsPayload struct {
	SimilarCases  []hit.Fused `json:"similar_cases"`
	KBArticles    []hit.Fused `json:"kb_articles"`
	RerankApplied bool        `json:"rerank_applied"`
	Partial       bool        `json:"partial"`
}

// RetrieverFallbackPayload reports that retrieval failed and the run degrades.
type RetrieverFallbackPayload struct {
	Reason     string `json:"reason"`
	FallbackTo string `json:"fallback_to"`
}

// ResolutionStartPayload announces the resolution step.
type ResolutionStartPayload struct {
	Mode proposal.Mode `json:"mode"`
}

// ResolutionCompletePayload carries the persisted draft.
type ResolutionCompletePayload struct {
	Proposal proposal.Proposal `json:"proposal"`
}

// FinalPayload closes a successful run.
type FinalPayload struct {
	ProposalID string        `json:"proposal_id"`
	Mode       proposal.Mode `json:"mode"`
	ElapsedMS  int64         `json:"elapsed_ms"`
}

// HeartbeatPayload keeps an idle stream alive.
type HeartbeatPayload struct {
	ElapsedMS int64 `json:"elapsed_ms"`
}

// ErrorPayload reports a failure. Recoverable errors allow the caller to retry the run.
type ErrorPayload struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func newEvent(t Type, at time.Time, payload any) Event {
	return Event{typ: t, at: at, payload: payload}
}

// NewRouteDecision builds a route_decision event.
func NewRouteDecision(at time.Time, p RouteDecisionPayload) Event {
	return newEvent(RouteDecision, at, p)
}

// NewRetrieverStart builds a retriever_start event.
func NewRetrieverStart(at time.Time, mode string) Event {
	return newEvent(RetrieverStart, at, RetrieverStartPayload{Mode: mode})
}

// NewRetrieverResults builds a retriever_results event.
func NewRetrieverResults(at time.Time, p RetrieverResultsPayload) Event {
	if p.SimilarCases == nil {
		p.SimilarCases = []hit.Fused{}
	}
	if p.KBArticles == nil {
		p.KBArticles = []hit.Fused{}
	}
	return newEvent(RetrieverResults, at, p)
}

// NewRetrieverFallback builds a retriever_fallback event.
func NewRetrieverFallback(at time.Time, reason, fallbackTo string) Event {
	return newEvent(RetrieverFallback, at, RetrieverFallbackPayload{Reason: reason, FallbackTo: fallbackTo})
}

// NewResolutionStart builds a resolution_start event.
func NewResolutionStart(at time.Time, mode proposal.Mode) Event {
	return newEvent(ResolutionStart, at, ResolutionStartPayload{Mode: mode})
}

// NewResolutionComplete builds a resolution_complete event.
func NewResolutionComplete(at time.Time, p proposal.Proposal) Event {
	return newEvent(ResolutionComplete, at, ResolutionCompletePayload{Proposal: p})
}

// NewFinal builds a final event.
func NewFinal(at time.Time, p FinalPayload) Event { return newEvent(Final, at, p) }

// NewHeartbeat builds a heartbeat event.
func NewHeartbeat(at time.Time, elapsed time.Duration) Event {
	return newEvent(Heartbeat, at, HeartbeatPayload{ElapsedMS: elapsed.Milliseconds()})
}

// NewError builds an error event.
func NewError(at time.Time, message string, recoverable bool) Event {
	return newEvent(Error, at, ErrorPayload{Message: message, Recoverable: recoverable})
}
