package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ticketlens API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Storage    StorageConfig    `yaml:"storage"`
	Tenants    []TenantConfig   `yaml:"tenants"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Model      ModelConfig      `yaml:"model"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Ticketing  TicketingConfig  `yaml:"ticketing"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// APIKeys maps a bearer key to the tenant it authenticates.
	APIKeys map[string]string `yaml:"api_keys"`
	// DefaultTenant is used when APIKeys is empty (local runs).
	DefaultTenant string `yaml:"default_tenant"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the redis (search index) connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig holds the proposal store connection settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// StorageConfig selects the proposal and tenant store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres (default), memory
}

// TenantConfig declares a tenant for the memory storage driver.
type TenantConfig struct {
	TenantID         string `yaml:"tenant_id"`
	Platform         string `yaml:"platform"`
	RetrievalEnabled bool   `yaml:"retrieval_enabled"`
	AnalysisDepth    string `yaml:"analysis_depth"`
	MaxTokens        int    `yaml:"max_tokens"`
}

// EmbeddingConfig holds the query embedder settings. An empty APIKey disables dense retrieval.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"`
}

// Enabled reports whether a query embedder is configured.
func (e EmbeddingConfig) Enabled() bool { return e.APIKey != "" }

// ModelConfig holds the resolution model settings.
type ModelConfig struct {
	Provider          string   `yaml:"provider"` // openai (default), anthropic
	APIKey            string   `yaml:"api_key"`
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	Temperature       *float64 `yaml:"temperature"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	// Tokenizer is a model or encoding name for token counting (default: cl100k_base).
	Tokenizer string `yaml:"tokenizer"`
}

// RerankConfig holds the cross-encoder settings. An empty APIKey disables reranking.
type RerankConfig struct {
	APIKey            string  `yaml:"api_key"`
	Endpoint          string  `yaml:"endpoint"`
	Model             string  `yaml:"model"`
	TopN              int     `yaml:"top_n"`
	TopK              int     `yaml:"top_k"`
	TimeoutMS         int     `yaml:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RetrievalConfig bounds the retrieval step.
type RetrievalConfig struct {
	DeadlineSec int `yaml:"deadline_sec"`
	TopK        int `yaml:"top_k"`
}

// FusionConfig tunes reciprocal rank fusion.
type FusionConfig struct {
	K             int     `yaml:"k"`
	DenseWeight   float64 `yaml:"dense_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`
}

// ResolutionConfig tunes drafting.
type ResolutionConfig struct {
	RelevanceFloor  float64 `yaml:"relevance_floor"`
	KeepTurns       int     `yaml:"keep_turns"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// WorkflowConfig bounds one analysis run.
type WorkflowConfig struct {
	DeadlineSec     int    `yaml:"deadline_sec"`
	HeartbeatSec    int    `yaml:"heartbeat_sec"`
	DefaultPlatform string `yaml:"default_platform"`
}

// TicketingConfig holds the ticketing gateway settings. An empty BaseURL means tickets are
// analyzed from the request query only.
type TicketingConfig struct {
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetryConfig holds the outbound retry policy.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 86400
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.Tokenizer == "" {
		c.Model.Tokenizer = "cl100k_base"
	}
	if c.Rerank.TopN <= 0 {
		c.Rerank.TopN = 20
	}
	if c.Rerank.TopK <= 0 {
		c.Rerank.TopK = 10
	}
	if c.Rerank.TimeoutMS <= 0 {
		c.Rerank.TimeoutMS = 5000
	}
	if c.Retrieval.DeadlineSec <= 0 {
		c.Retrieval.DeadlineSec = 30
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Fusion.K <= 0 {
		c.Fusion.K = 60
	}
	if c.Fusion.DenseWeight <= 0 {
		c.Fusion.DenseWeight = 1.0
	}
	if c.Fusion.LexicalWeight <= 0 {
		c.Fusion.LexicalWeight = 1.0
	}
	if c.Resolution.RelevanceFloor <= 0 {
		c.Resolution.RelevanceFloor = 0.55
	}
	if c.Resolution.KeepTurns <= 0 {
		c.Resolution.KeepTurns = 4
	}
	if c.Resolution.MaxOutputTokens <= 0 {
		c.Resolution.MaxOutputTokens = 1024
	}
	if c.Workflow.DeadlineSec <= 0 {
		c.Workflow.DeadlineSec = 60
	}
	if c.Workflow.HeartbeatSec <= 0 {
		c.Workflow.HeartbeatSec = 30
	}
	if c.Workflow.DefaultPlatform == "" {
		c.Workflow.DefaultPlatform = "zendesk"
	}
	if c.Ticketing.TimeoutSec <= 0 {
		c.Ticketing.TimeoutSec = 10
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoffMS <= 0 {
		c.Retry.InitialBackoffMS = 250
	}
	if c.Retry.MaxBackoffMS <= 0 {
		c.Retry.MaxBackoffMS = 4000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for storage.driver \"postgres\"")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be \"postgres\" or \"memory\", got %q", c.Storage.Driver)
	}
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("model.provider must be \"openai\" or \"anthropic\", got %q", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required when embedding.api_key is set")
	}
	if c.Rerank.TopK > c.Rerank.TopN {
		return fmt.Errorf("rerank.top_k (%d) must not exceed rerank.top_n (%d)", c.Rerank.TopK, c.Rerank.TopN)
	}
	if c.Resolution.RelevanceFloor > 1 {
		return fmt.Errorf("resolution.relevance_floor must be in (0, 1], got %v", c.Resolution.RelevanceFloor)
	}
	for key, tenantID := range c.Auth.APIKeys {
		if key == "" || tenantID == "" {
			return fmt.Errorf("auth.api_keys entries need a key and a tenant")
		}
	}
	return nil
}

// Durations.

// RetrievalDeadline returns retrieval.deadline_sec as a duration.
func (c *Config) RetrievalDeadline() time.Duration {
	return time.Duration(c.Retrieval.DeadlineSec) * time.Second
}

// WorkflowDeadline returns workflow.deadline_sec as a duration.
func (c *Config) WorkflowDeadline() time.Duration {
	return time.Duration(c.Workflow.DeadlineSec) * time.Second
}

// HeartbeatInterval returns workflow.heartbeat_sec as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatSec) * time.Second
}

// RerankTimeout returns rerank.timeout_ms as a duration.
func (c *Config) RerankTimeout() time.Duration {
	return time.Duration(c.Rerank.TimeoutMS) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
