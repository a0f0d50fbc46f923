package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yyup/kindergarten-engine/pkg/auth"
	"github.com/yyup/kindergarten-engine/pkg/cache"
	"github.com/yyup/kindergarten-engine/pkg/config"
	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/handlers"
	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/metrics"
	"github.com/yyup/kindergarten-engine/pkg/middleware"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/registry"
	"github.com/yyup/kindergarten-engine/pkg/repositories"
	"github.com/yyup/kindergarten-engine/pkg/schema"
	"github.com/yyup/kindergarten-engine/pkg/semantic"
	"github.com/yyup/kindergarten-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// semanticThreshold is the minimum cosine similarity for the semantic
// tier to answer from the document corpus.
const semanticThreshold = 0.75

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional; without it the cache runs on the in-process
	// layer only.
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	localStore, err := cache.NewMemoryStore(cfg.Cache.LocalSize)
	if err != nil {
		logger.Fatal("Failed to create local cache", zap.Error(err))
	}
	var sharedStore cache.Store
	if redisClient != nil {
		sharedStore = cache.NewRedisStore(redisClient)
	}
	queryCache := cache.New(localStore, sharedStore, cfg.Cache.TTL, logger)

	// Model registry, seeded with defaults on first boot.
	modelRepo := repositories.NewModelRepository(db)
	modelRegistry, err := registry.New(ctx, modelRepo, logger)
	if err != nil {
		logger.Fatal("Failed to load model registry", zap.Error(err))
	}
	if err := seedDefaultModels(ctx, modelRegistry); err != nil {
		logger.Fatal("Failed to seed default models", zap.Error(err))
	}

	clientFactory := llm.NewClientFactory(&cfg.AI, logger)
	schemaGateway := schema.NewGateway(db, logger)

	// Semantic tier
	embedder := services.NewRegistryEmbedder(modelRegistry, clientFactory, cfg.AI.EmbeddingModel)
	documentIndex, err := semantic.NewIndex(ctx, embedder, repositories.NewDocumentRepository(db), semanticThreshold, logger)
	if err != nil {
		logger.Fatal("Failed to build semantic index", zap.Error(err))
	}

	// Pipeline services
	recordRepo := repositories.NewQueryRecordRepository()
	queryRouter := services.NewQueryRouter(cfg.Router.ComplexityThreshold, logger)
	directResponder := services.NewDirectResponder(queryRouter, logger)
	fallback := services.NewFallbackController(directResponder, logger)

	chatService := services.NewChatService(services.ChatServiceDeps{
		Cache:    queryCache,
		Router:   queryRouter,
		Direct:   directResponder,
		Semantic: services.NewSemanticResponder(documentIndex, logger),
		Complex:  services.NewComplexResponder(modelRegistry, clientFactory, logger),
		Fallback: fallback,
		Records:  recordRepo,
	}, cfg.Router.MaxQueryLength, logger)

	dataService := services.NewDataQueryService(services.DataQueryServiceDeps{
		Cache:       queryCache,
		Classifier:  services.NewIntentClassifier(modelRegistry, clientFactory, schemaGateway, logger),
		Synthesizer: services.NewSQLSynthesizer(modelRegistry, clientFactory, schemaGateway, logger),
		Executor:    services.NewSQLExecutor(cfg.Executor.MaxRows, cfg.Executor.Timeout, logger),
		Presenter:   services.NewResultPresenter(),
		Responder:   services.NewComplexResponder(modelRegistry, clientFactory, logger),
		Records:     recordRepo,
	}, cfg.Router.MaxQueryLength, logger)

	historyService := services.NewHistoryService(recordRepo, queryCache, logger)

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, logger), logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	// Routes
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db, redisClient, logger).RegisterRoutes(mux)
	handlers.NewAIQueryHandler(chatService, dataService, historyService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewAIModelsHandler(modelRegistry, logger).RegisterRoutes(mux, authMiddleware)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := metrics.HTTPMiddleware(middleware.RequestLogger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting kindergarten-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies pending schema migrations through database/sql,
// which golang-migrate requires.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, "migrations", logger)
}

// seedDefaultModels registers a working model set on an empty registry
// so a fresh deployment answers queries without manual setup.
func seedDefaultModels(ctx context.Context, reg registry.ModelRegistry) error {
	if len(reg.List(ctx)) > 0 {
		return nil
	}

	defaults := []*models.ModelDescriptor{
		{
			Name:         "gpt-4o",
			Provider:     models.ProviderOpenAI,
			Capabilities: []string{models.CapabilityChat, models.CapabilitySQL},
			Priority:     10,
			Active:       true,
			MaxTokens:    2000,
		},
		{
			Name:         "gpt-4o-mini",
			Provider:     models.ProviderOpenAI,
			Capabilities: []string{models.CapabilityIntent},
			Priority:     10,
			Active:       true,
			MaxTokens:    500,
		},
		{
			Name:         "text-embedding-3-small",
			Provider:     models.ProviderOpenAI,
			Capabilities: []string{models.CapabilityEmbedding},
			Priority:     10,
			Active:       true,
		},
	}
	for _, descriptor := range defaults {
		if err := reg.Register(ctx, descriptor); err != nil {
			return err
		}
	}
	return nil
}
