package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/config"
	"github.com/kailas-cloud/ticketlens/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/ticketlens/internal/db/redis"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	logpkg "github.com/kailas-cloud/ticketlens/internal/logger"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/repository/index"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
	chiTransport "github.com/kailas-cloud/ticketlens/internal/transport/chi"
	approvaluc "github.com/kailas-cloud/ticketlens/internal/usecase/approval"
	healthuc "github.com/kailas-cloud/ticketlens/internal/usecase/health"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
	"github.com/kailas-cloud/ticketlens/internal/usecase/retrieval"
	"github.com/kailas-cloud/ticketlens/internal/usecase/workflow"
	"github.com/kailas-cloud/ticketlens/internal/version"
)

// defaultVectorDim sizes the HNSW fields when no embedder is configured.
const defaultVectorDim = 1536

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ticketlens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("model_provider", cfg.Model.Provider),
		zap.Strings("redis_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Search index store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create redis store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	logger.Info("Connected to redis")

	vectorDim := cfg.Embedding.Dimensions
	if vectorDim <= 0 {
		vectorDim = defaultVectorDim
	}
	vectorFields := map[hit.Family][]string{
		hit.Case:      index.DefaultVectorFields(hit.Case),
		hit.Procedure: index.DefaultVectorFields(hit.Procedure),
	}
	if err := index.Bootstrap(ctx, store, vectorDim, vectorFields, logger); err != nil {
		logger.Fatal("Failed to bootstrap search indexes", zap.Error(err))
	}

	// Proposal and tenant storage
	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create storage", zap.Error(err))
	}
	defer stores.close()

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
	}

	// Retrieval: per-family hybrid engines over the shared index
	queryEmbedder, embeddingProbe := buildEmbedder(cfg, store, retry, logger)
	retriever := retrieval.New(
		buildEngines(cfg, store, queryEmbedder, logger),
		retrieval.Options{Deadline: cfg.RetrievalDeadline(), TopK: cfg.Retrieval.TopK},
		logger,
	)

	// Resolution
	model := buildModel(cfg, logger)
	resolver := resolution.New(model, buildCounter(cfg, logger), resolution.Options{
		RelevanceFloor:  cfg.Resolution.RelevanceFloor,
		KeepTurns:       cfg.Resolution.KeepTurns,
		MaxOutputTokens: cfg.Resolution.MaxOutputTokens,
		Retry:           retry,
	}, logger)

	// Approval
	approvals := approvaluc.New(stores.proposals, resolver, logger)

	// Workflow
	orchestrator := workflow.New(
		stores.tenants, buildTicketSource(cfg, retry, logger), retriever, resolver, approvals,
		workflow.Options{Deadline: cfg.WorkflowDeadline(), HeartbeatInterval: cfg.HeartbeatInterval()},
		logger,
	)

	// Health service. Optional components stay untyped nil when absent.
	var pgPinger healthuc.DBPinger
	if stores.pool != nil {
		pgPinger = stores.pool
	}
	var embChecker healthuc.EmbeddingChecker
	if embeddingProbe != nil {
		embChecker = embeddingProbe
	}
	healthSvc := healthuc.New(store, pgPinger, embChecker)

	// Create chi server
	server := chiTransport.NewServer(orchestrator, approvals, healthSvc, cfg.Workflow.DefaultPlatform, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, cfg.Auth.DefaultTenant))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// storage bundles the proposal and tenant stores selected by storage.driver.
type storage struct {
	proposals approvaluc.Repository
	tenants   workflow.TenantConfigs
	pool      postgres.Pool
}

func (s storage) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
