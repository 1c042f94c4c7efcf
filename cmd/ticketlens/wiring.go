package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/config"
	"github.com/kailas-cloud/ticketlens/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/ticketlens/internal/db/redis"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/repository/embcache"
	"github.com/kailas-cloud/ticketlens/internal/repository/index"
	proposalrepo "github.com/kailas-cloud/ticketlens/internal/repository/proposal"
	tenantrepo "github.com/kailas-cloud/ticketlens/internal/repository/tenant"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
	anthropicModel "github.com/kailas-cloud/ticketlens/internal/transport/anthropic"
	openaiTransport "github.com/kailas-cloud/ticketlens/internal/transport/openai"
	"github.com/kailas-cloud/ticketlens/internal/transport/rerank"
	"github.com/kailas-cloud/ticketlens/internal/transport/ticketing"
	embeddinguc "github.com/kailas-cloud/ticketlens/internal/usecase/embedding"
	"github.com/kailas-cloud/ticketlens/internal/usecase/fusion"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
	"github.com/kailas-cloud/ticketlens/internal/usecase/retrieval"
	"github.com/kailas-cloud/ticketlens/internal/usecase/workflow"
)

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		configs := make([]tenant.Config, 0, len(cfg.Tenants))
		for _, t := range cfg.Tenants {
			configs = append(configs, tenant.Config{
				TenantID:         t.TenantID,
				Platform:         t.Platform,
				RetrievalEnabled: t.RetrievalEnabled,
				AnalysisDepth:    tenant.AnalysisDepth(t.AnalysisDepth),
				MaxTokens:        t.MaxTokens,
			})
		}
		tenants, err := tenantrepo.NewStatic(configs)
		if err != nil {
			return storage{}, fmt.Errorf("tenants: %w", err)
		}
		logger.Warn("Using in-memory proposal store; proposals are lost on restart")
		return storage{proposals: proposalrepo.NewMemory(), tenants: tenants}, nil

	default:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return storage{}, err
		}
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return storage{}, err
		}
		logger.Info("Connected to postgres")
		return storage{
			proposals: proposalrepo.NewPostgres(pool),
			tenants:   tenantrepo.NewPostgres(pool),
			pool:      pool,
		}, nil
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The second value is the base provider, probed by /health.
// Both are nil when no embedding provider is configured; dense retrieval is then unavailable.
func buildEmbedder(
	cfg config.Config, store *dbRedis.Store, retry resilience.RetryConfig, logger *zap.Logger,
) (domain.Embedder, domain.HealthChecker) {
	ec := cfg.Embedding
	if !ec.Enabled() {
		logger.Warn("No embedding provider configured; hybrid search runs lexical only")
		return nil, nil
	}

	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = embcache.New(
		base, store, ec.Model, time.Duration(ec.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger,
	)

	// Instrumented (retries + dimension check)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, ec.Dimensions, retry, logger)

	// Instruction prefix (outermost, so the cache key includes the instruction)
	if ec.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}

	logger.Info("Query embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
	)
	return embedder, base
}

func buildEngines(
	cfg config.Config, store *dbRedis.Store, embedder domain.Embedder, logger *zap.Logger,
) map[hit.Family]retrieval.Searcher {
	var scorer fusion.Scorer
	if cfg.Rerank.APIKey != "" {
		scorer = rerank.New(cfg.Rerank.APIKey,
			rerank.WithEndpoint(cfg.Rerank.Endpoint),
			rerank.WithModel(cfg.Rerank.Model),
			rerank.WithRateLimit(cfg.Rerank.RequestsPerSecond, 1),
		)
	}

	opts := fusion.Options{
		K:       cfg.Fusion.K,
		Weights: fusion.Weights{Dense: cfg.Fusion.DenseWeight, Lexical: cfg.Fusion.LexicalWeight},
		Rerank: fusion.RerankOptions{
			TopN:    cfg.Rerank.TopN,
			TopK:    cfg.Rerank.TopK,
			Timeout: cfg.RerankTimeout(),
		},
	}

	engines := make(map[hit.Family]retrieval.Searcher, len(hit.Families()))
	for _, f := range hit.Families() {
		// Untyped nil keeps the engine's "adapter not configured" path.
		var dense index.Searcher
		if embedder != nil {
			dense = index.NewDense(store, embedder, f, index.DefaultVectorFields(f))
		}
		engines[f] = fusion.NewEngine(f, index.NewLexical(store, f), dense, scorer, opts,
			logger.With(zap.String("family", string(f))))
	}
	return engines
}

func buildModel(cfg config.Config, logger *zap.Logger) resolution.Model {
	mc := cfg.Model
	if mc.Provider == "anthropic" {
		return anthropicModel.New(anthropicModel.Config{
			APIKey:            mc.APIKey,
			BaseURL:           mc.BaseURL,
			Model:             mc.Model,
			Temperature:       mc.Temperature,
			RequestsPerSecond: mc.RequestsPerSecond,
			Burst:             mc.Burst,
			Logger:            logger,
		})
	}

	var temperature float32
	if mc.Temperature != nil {
		temperature = float32(*mc.Temperature)
	}
	return openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:            mc.APIKey,
		BaseURL:           mc.BaseURL,
		Model:             mc.Model,
		Temperature:       temperature,
		RequestsPerSecond: mc.RequestsPerSecond,
		Burst:             mc.Burst,
		Provider:          mc.Provider,
		Logger:            logger,
	})
}

func buildCounter(cfg config.Config, logger *zap.Logger) resolution.TokenCounter {
	counter, err := resolution.NewTiktoken(cfg.Model.Tokenizer)
	if err != nil {
		logger.Warn("Tokenizer unavailable, approximating token counts",
			zap.String("tokenizer", cfg.Model.Tokenizer), zap.Error(err))
		return resolution.ApproxCounter{}
	}
	return counter
}

func buildTicketSource(cfg config.Config, retry resilience.RetryConfig, logger *zap.Logger) workflow.TicketSource {
	if cfg.Ticketing.BaseURL == "" {
		logger.Warn("No ticketing gateway configured; analysis uses the request query only")
		return nil
	}
	return ticketing.New(ticketing.Config{
		BaseURL: cfg.Ticketing.BaseURL,
		Token:   cfg.Ticketing.Token,
		Timeout: time.Duration(cfg.Ticketing.TimeoutSec) * time.Second,
		Retry:   retry,
		Logger:  logger,
	})
}
