package resolution

import "context"

// Prompt is one chat-model request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Model generates a completion. Implementations wrap transient failures in
// resilience.TransientError so the agent can retry them.
type Model interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// TokenCounter measures text against the tenant's context budget.
type TokenCounter interface {
	Count(text string) int
}
