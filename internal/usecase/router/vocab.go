package router

import (
	"regexp"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
)

// Intent families, checked in this order.
var (
	problemCues = []string{
		"error", "errors", "fail", "fails", "failed", "failing", "failure", "broken", "crash", "crashes",
		"crashed", "timeout", "timeouts", "bug", "exception", "down", "outage", "fix", "cannot",
		"unable", "not working", "stopped working", "doesn't work",
	}
	performanceCues = []string{
		"performance", "slow", "latency", "metrics", "trend", "trends", "volume", "analytics",
		"statistics", "stats", "sla", "throughput", "response time", "resolution time",
	}
	learningCues = []string{
		"tutorial", "guide", "learn", "explain", "documentation", "docs", "onboarding",
		"how to", "how do", "what is", "best practice", "best practices",
	}
)

// Urgency words. Explicit urgency beats temporal cues.
var (
	urgentCues    = []string{"urgent", "asap", "critical", "emergency", "immediately", "blocker", "outage"}
	temporalCues  = []string{"today", "now", "tonight"}
	referenceCues = []string{"reference", "documentation", "docs", "archive", "historical", "history", "background"}
)

// intentSorts follow relevance for each intent.
var intentSorts = map[intent.Intent][]string{
	intent.ImmediateProblemSolving: {intent.SortHelpfulness, intent.SortCreatedAt},
	intent.PerformanceAnalysis:     {intent.SortResolutionTime, intent.SortTicketVolume},
	intent.Learning:                {intent.SortHelpfulness},
	intent.InformationGathering:    {intent.SortCreatedAt},
}

var latestCue = regexp.MustCompile(`\b(latest|newest|most recent)\b`)

// synonyms expand a kept keyword with the terms the indexes use for it.
var synonyms = map[string][]string{
	"login":    {"signin", "authentication"},
	"signin":   {"login"},
	"password": {"credentials", "reset"},
	"billing":  {"invoice", "payment"},
	"invoice":  {"billing"},
	"refund":   {"chargeback", "billing"},
	"shipping": {"delivery"},
	"timeout":  {"latency"},
	"slow":     {"latency"},
	"crash":    {"exception"},
	"sso":      {"saml", "authentication"},
	"api":      {"endpoint"},
}

// stopWords holds function words plus every filter and urgency trigger so that
// filter phrases do not double as search terms.
var stopWords = toSet(
	"a", "an", "the", "and", "or", "but", "is", "are", "was", "were", "be", "been", "to", "of", "in",
	"on", "for", "with", "at", "by", "from", "as", "into", "my", "our", "your", "their", "i", "we",
	"you", "it", "its", "they", "them", "this", "that", "these", "those", "please", "help", "me",
	"can", "could", "would", "should", "do", "does", "did", "have", "has", "had", "not", "no", "any",
	"all", "some", "what", "when", "where", "which", "who", "why", "how", "about", "get", "got",
	"there", "show", "find", "list", "see", "need", "want", "still", "also", "just", "after",
	"before", "since", "again", "there", "than", "then", "so", "if", "is", "am", "will", "via",
	// time window and recency
	"today", "yesterday", "week", "weeks", "month", "months", "last", "past", "now", "tonight",
	"latest", "newest", "recent", "most",
	// urgency
	"urgent", "asap", "critical", "emergency", "immediately", "blocker",
	// priority, status, tier, attachments
	"priority", "high", "medium", "low", "status", "open", "closed", "resolved", "pending",
	"ticket", "tickets", "tier", "enterprise", "premium", "vip", "free", "customer", "customers", "plan",
	"screenshot", "screenshots", "image", "images", "pdf", "attachment", "attachments", "attached",
)

var priorityCode = regexp.MustCompile(`^p[1-4]$`)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
