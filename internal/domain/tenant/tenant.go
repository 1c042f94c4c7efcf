package tenant

import (
	"fmt"
	"strings"
)

// AnalysisDepth controls how much evidence the resolution step is given.
type AnalysisDepth string

// Analysis depths.
const (
	DepthQuick    AnalysisDepth = "quick"
	DepthStandard AnalysisDepth = "standard"
	DepthDeep     AnalysisDepth = "deep"
)

// EvidenceLimit is how many fused hits per family the prompt may cite at this depth.
func (d AnalysisDepth) EvidenceLimit() int {
	switch d {
	case DepthQuick:
		return 3
	case DepthDeep:
		return 10
	default:
		return 5
	}
}

// DefaultMaxTokens is the context budget applied when a tenant row leaves it unset.
const DefaultMaxTokens = 8000

// Config is a tenant's per-platform settings. Read-only to the engine: looked up once per
// request and passed by value through every stage.
type Config struct {
	TenantID         string        `json:"tenant_id"`
	Platform         string        `json:"platform"`
	RetrievalEnabled bool          `json:"retrieval_enabled"`
	AnalysisDepth    AnalysisDepth `json:"analysis_depth"`
	MaxTokens        int           `json:"max_tokens"`
}

// Validate checks the stored configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if strings.TrimSpace(c.Platform) == "" {
		return fmt.Errorf("platform is required")
	}
	switch c.AnalysisDepth {
	case "", DepthQuick, DepthStandard, DepthDeep:
	default:
		return fmt.Errorf("unknown analysis_depth %q", c.AnalysisDepth)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}
	return nil
}

// TokenBudget returns MaxTokens or the default when unset.
func (c Config) TokenBudget() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}
