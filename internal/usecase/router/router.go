// Package router decides how a ticket is handled and extracts its structured search intent.
// Everything here is deterministic and offline.
package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
)

// Request is the router input.
type Request struct {
	Text      string
	ActorRole string
	Now       time.Time
}

// Decision is the closed set of handling paths: Synthesis or Direct.
type Decision interface {
	isDecision()
}

// Synthesis runs retrieval and drafts from evidence.
type Synthesis struct {
	Context intent.SearchContext
	Reason  string
}

// Direct skips retrieval and drafts from the ticket alone.
type Direct struct {
	Context intent.SearchContext
	Reason  string
}

func (Synthesis) isDecision() {}
func (Direct) isDecision()    {}

// Embedding modes reported alongside a decision.
const (
	EmbeddingHybrid = "hybrid"
	EmbeddingNone   = "none"
)

// Route analyzes the request and picks a path under the tenant's settings.
func Route(req Request, cfg tenant.Config) Decision {
	sc := Analyze(req.Text, req.Now)

	if !cfg.RetrievalEnabled {
		return Direct{Context: sc, Reason: "retrieval is disabled for this tenant"}
	}
	if len(sc.Keywords) == 0 {
		return Direct{Context: sc, Reason: "no searchable keywords in request"}
	}

	reason := fmt.Sprintf("intent %s, urgency %s, %d keywords, %d filters",
		sc.Intent, sc.Urgency, len(sc.Keywords), len(sc.Filters.Map()))
	if req.ActorRole != "" {
		reason += ", requested by " + req.ActorRole
	}
	return Synthesis{Context: sc, Reason: reason}
}

// Describe flattens a decision into the fields of a route_decision event.
func Describe(d Decision) (name, reason, embeddingMode string, sc intent.SearchContext) {
	switch d := d.(type) {
	case Synthesis:
		return "synthesis", d.Reason, EmbeddingHybrid, d.Context
	case Direct:
		return "direct", d.Reason, EmbeddingNone, d.Context
	default:
		panic(fmt.Sprintf("router: unknown decision %T", d))
	}
}

// Analyze builds the search context for text evaluated at now.
func Analyze(text string, now time.Time) intent.SearchContext {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)
	words := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		words[t] = true
	}

	// Multi-word cues match whole tokens in order, never inside a longer word.
	phrase := " " + strings.Join(tokens, " ") + " "

	in := classifyIntent(phrase, words)
	urg := classifyUrgency(words)

	return intent.SearchContext{
		Intent:       in,
		Urgency:      urg,
		Keywords:     extractKeywords(tokens),
		Filters:      extractFilters(lower, phrase, words, now),
		SortCriteria: sortCriteria(in, urg, lower),
	}
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

// containsAny reports whether a cue occurs. Single-word cues are looked up in words; multi-word
// cues are matched against phrase, the space-padded token sequence.
func containsAny(phrase string, words map[string]bool, cues []string) bool {
	for _, c := range cues {
		cueTokens := tokenize(c)
		if len(cueTokens) > 1 {
			if strings.Contains(phrase, " "+strings.Join(cueTokens, " ")+" ") {
				return true
			}
		} else if words[c] {
			return true
		}
	}
	return false
}

func classifyIntent(phrase string, words map[string]bool) intent.Intent {
	switch {
	case containsAny(phrase, words, problemCues):
		return intent.ImmediateProblemSolving
	case containsAny(phrase, words, performanceCues):
		return intent.PerformanceAnalysis
	case containsAny(phrase, words, learningCues):
		return intent.Learning
	default:
		return intent.InformationGathering
	}
}

func classifyUrgency(words map[string]bool) intent.Urgency {
	switch {
	case containsAny("", words, urgentCues):
		return intent.Immediate
	case containsAny("", words, temporalCues):
		return intent.Today
	case containsAny("", words, referenceCues):
		return intent.Reference
	default:
		return intent.General
	}
}

func extractKeywords(tokens []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}

	var kept []string
	for _, t := range tokens {
		if len(t) < 2 || stopWords[t] || priorityCode.MatchString(t) {
			continue
		}
		kept = append(kept, t)
		add(t)
	}
	for _, t := range kept {
		for _, syn := range synonyms[t] {
			add(syn)
		}
	}
	return out
}

func sortCriteria(in intent.Intent, urg intent.Urgency, lower string) []string {
	criteria := append([]string{intent.SortRelevance}, intentSorts[in]...)

	switch urg {
	case intent.Immediate:
		criteria = append([]string{intent.SortPriority}, criteria...)
	case intent.Today:
		criteria = append([]string{intent.SortCreatedAt}, criteria...)
	}
	if latestCue.MatchString(lower) {
		criteria = append([]string{intent.SortCreatedAt}, criteria...)
	}

	seen := make(map[string]bool, len(criteria))
	out := criteria[:0]
	for _, c := range criteria {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
