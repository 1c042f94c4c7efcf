package tenant

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{TenantID: "acme", Platform: "zendesk", AnalysisDepth: DepthDeep}, false},
		{"empty depth ok", Config{TenantID: "acme", Platform: "zendesk"}, false},
		{"missing tenant", Config{Platform: "zendesk"}, true},
		{"missing platform", Config{TenantID: "acme"}, true},
		{"bad depth", Config{TenantID: "acme", Platform: "zendesk", AnalysisDepth: "huge"}, true},
		{"negative tokens", Config{TenantID: "acme", Platform: "zendesk", MaxTokens: -1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTokenBudget(t *testing.T) {
	if got := (Config{}).TokenBudget(); got != DefaultMaxTokens {
		t.Errorf("TokenBudget() = %d, want default", got)
	}
	if got := (Config{MaxTokens: 1200}).TokenBudget(); got != 1200 {
		t.Errorf("TokenBudget() = %d, want 1200", got)
	}
}

func TestEvidenceLimit(t *testing.T) {
	if DepthQuick.EvidenceLimit() >= DepthStandard.EvidenceLimit() {
		t.Error("quick should cite fewer hits than standard")
	}
	if DepthDeep.EvidenceLimit() <= DepthStandard.EvidenceLimit() {
		t.Error("deep should cite more hits than standard")
	}
	if AnalysisDepth("").EvidenceLimit() != DepthStandard.EvidenceLimit() {
		t.Error("unset depth should behave as standard")
	}
}
