package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Storage:  StorageConfig{Driver: "memory"},
		Model:    ModelConfig{Model: "gpt-4o-mini"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing redis addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "postgres.dsn"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"unknown model provider", func(c *Config) { c.Model.Provider = "palm" }, "model.provider"},
		{"missing model", func(c *Config) { c.Model.Model = "" }, "model.model"},
		{"embedding without dimensions", func(c *Config) { c.Embedding.APIKey = "k" }, "embedding.dimensions"},
		{"rerank k over n", func(c *Config) { c.Rerank.TopK = 30 }, "rerank.top_k"},
		{"relevance floor over 1", func(c *Config) { c.Resolution.RelevanceFloor = 1.5 }, "relevance_floor"},
		{"api key without tenant", func(c *Config) { c.Auth.APIKeys = map[string]string{"k": ""} }, "auth.api_keys"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.WriteTimeoutSec != 10 || cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("expected storage driver postgres, got %q", cfg.Storage.Driver)
	}
	if cfg.Fusion.K != 60 || cfg.Fusion.DenseWeight != 1.0 || cfg.Fusion.LexicalWeight != 1.0 {
		t.Errorf("unexpected fusion defaults: %+v", cfg.Fusion)
	}
	if cfg.Rerank.TopN != 20 || cfg.Rerank.TopK != 10 {
		t.Errorf("unexpected rerank defaults: %+v", cfg.Rerank)
	}
	if cfg.Resolution.RelevanceFloor != 0.55 || cfg.Resolution.KeepTurns != 4 {
		t.Errorf("unexpected resolution defaults: %+v", cfg.Resolution)
	}
	if cfg.RetrievalDeadline() != 30*time.Second {
		t.Errorf("expected retrieval deadline 30s, got %s", cfg.RetrievalDeadline())
	}
	if cfg.WorkflowDeadline() != 60*time.Second || cfg.HeartbeatInterval() != 30*time.Second {
		t.Errorf("unexpected workflow defaults: %+v", cfg.Workflow)
	}
	if cfg.RerankTimeout() != 5*time.Second {
		t.Errorf("expected rerank timeout 5s, got %s", cfg.RerankTimeout())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Storage: StorageConfig{Driver: "memory"},
		Fusion:  FusionConfig{K: 10, DenseWeight: 2},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected driver memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Fusion.K != 10 || cfg.Fusion.DenseWeight != 2 || cfg.Fusion.LexicalWeight != 1 {
		t.Errorf("unexpected fusion: %+v", cfg.Fusion)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TL_MODEL", "claude-test")
	yaml := []byte(`
http:
  port: ${TL_PORT:-9090}
database:
  addrs: ["localhost:6379"]
storage:
  driver: memory
model:
  provider: anthropic
  model: ${TL_MODEL}
auth:
  api_keys:
    key-acme: acme
tenants:
  - tenant_id: acme
    platform: zendesk
    retrieval_enabled: true
`)
	cfg, err := Parse(yaml)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected default port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Model.Model != "claude-test" || cfg.Model.Provider != "anthropic" {
		t.Errorf("unexpected model: %+v", cfg.Model)
	}
	if cfg.Auth.APIKeys["key-acme"] != "acme" {
		t.Errorf("unexpected api keys: %v", cfg.Auth.APIKeys)
	}
	if len(cfg.Tenants) != 1 || !cfg.Tenants[0].RetrievalEnabled {
		t.Errorf("unexpected tenants: %+v", cfg.Tenants)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected YAML error")
	}
}
