// Package main is the entry point for the ZenQuote server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/ai"
	"github.com/jkindrix/zenquote/internal/audit"
	"github.com/jkindrix/zenquote/internal/catalog"
	"github.com/jkindrix/zenquote/internal/clock"
	"github.com/jkindrix/zenquote/internal/config"
	"github.com/jkindrix/zenquote/internal/database"
	"github.com/jkindrix/zenquote/internal/domain"
	"github.com/jkindrix/zenquote/internal/handler"
	"github.com/jkindrix/zenquote/internal/logging"
	"github.com/jkindrix/zenquote/internal/metrics"
	"github.com/jkindrix/zenquote/internal/middleware"
	"github.com/jkindrix/zenquote/internal/ratelimit"
	"github.com/jkindrix/zenquote/internal/repository"
	"github.com/jkindrix/zenquote/internal/service"
	"github.com/jkindrix/zenquote/internal/shutdown"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.Zap()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting ZenQuote server",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx := context.Background()

	m := metrics.NewMetrics()
	events := metrics.NewBusinessEventLogger(logger)
	auditLog := audit.NewLogger(logger)

	// Initialize the durable store
	store, closeStore, err := initStateStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize state store", zap.Error(err))
	}
	// Note: closeStore is handled by shutdown coordinator

	proposalRepo := repository.NewProposalRepository(store)
	presentationRepo := repository.NewPresentationRepository(store)

	sessions := repository.NewSessionCache[*service.Session](cfg.Session.TTL)
	sessions.OnEvicted(func(id string) {
		logger.Debug("builder session discarded", zap.String("session_id", id))
	})

	// Initialize catalog
	catalogProvider := catalog.NewProvider(
		catalog.NewSource(cfg.Catalog.Source, &http.Client{Timeout: 10 * time.Second}),
		cfg.Catalog.CacheTTL,
		logger,
	)
	catalogProvider.SetRecorder(m)
	catalogProvider.SetEventLogger(events)
	// Warm the cache so the first request does not pay for the fetch.
	if cat := catalogProvider.Current(ctx); cat.ServiceCount() == 0 {
		logger.Warn("catalog is empty, the builder will offer no services",
			zap.String("source", cfg.Catalog.Source),
		)
	}

	// Initialize AI client
	gemini := ai.NewGeminiClient(&cfg.Gemini, logger)
	gemini.SetRecorder(m)
	advisor := ai.NewAdvisor(gemini, logger)
	advisor.SetRecorder(m)

	// Initialize services
	builderService := service.NewBuilderService(sessions, catalogProvider, proposalRepo, logger)
	builderService.SetMetrics(m)
	builderService.SetEventLogger(events)

	chatService := service.NewChatService(builderService, advisor, catalogProvider, logger)
	chatService.SetMetrics(m)
	chatService.SetEventLogger(events)
	chatService.SetLimiter(ratelimit.NewAdvisorLimiter(ratelimit.AdvisorLimiterConfig{
		MaxRequestsPerMinute: cfg.Advisor.RequestsPerMinute,
		MaxRequestsPerHour:   cfg.Advisor.RequestsPerHour,
		MaxRequestsPerDay:    cfg.Advisor.RequestsPerDay,
		MaxConcurrent:        cfg.Advisor.MaxConcurrent,
	}, clock.New(), logger.Named("advisor-budget")))

	proposalService := service.NewProposalService(proposalRepo, logger)
	proposalService.SetMetrics(m)
	proposalService.SetEventLogger(events)

	presentationService := service.NewPresentationService(presentationRepo, logger)

	// Initialize shutdown coordinator
	shutdownCoord := shutdown.NewCoordinator(&shutdown.Config{
		Timeout: cfg.Server.ShutdownTimeout,
	}, logger)
	readiness := shutdown.NewReadinessProbe(shutdownCoord)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:       logger,
		Builder:      builderService,
		Chat:         chatService,
		Proposals:    proposalService,
		Presentation: presentationService,
		Catalog:      catalogProvider,
		Health: handler.HealthHandlerConfig{
			HealthChecker:   store,
			AIHealthChecker: gemini,
			CatalogChecker:  catalogProvider,
			Readiness:       readiness,
			Version:         version,
		},
		LogLevel:    log.AtomicLevel(),
		Metrics:     m,
		RateLimiter: initRateLimiter(cfg, m, events, logger),
		Audit:       auditLog,
	})

	// Create server. A chat request makes two sequential Gemini calls, so
	// the write timeout leaves room for both.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2*cfg.Gemini.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	auditLog.ServiceStarted(ctx, version, cfg.Server.Environment, cfg.Storage.Driver)

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Register shutdown steps (in order of shutdown phases)
	shutdownCoord.RegisterFunc(shutdown.PhaseStopIntake, "readiness", func(ctx context.Context) error {
		readiness.SetReady(false)
		return nil
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseFlush, "builder-sessions", func(ctx context.Context) error {
		n := sessions.Flush()
		logger.Info("discarded builder sessions", zap.Int("count", n))
		return nil
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "state-store", func(ctx context.Context) error {
		closeStore()
		return nil
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("received shutdown signal", zap.Stringer("signal", sig))
	auditLog.ServiceStopping(ctx, "signal: "+sig.String())

	// Execute graceful shutdown
	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// initLogger builds the application logger from the log and server settings.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
		Service:     "zenquote",
	})
}

// initStateStore opens the configured durable store. The returned func
// releases it.
func initStateStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.StateStore, func(), error) {
	if !cfg.UsesPostgres() {
		logger.Warn("using in-memory storage, proposals are lost on restart")
		return repository.NewMemoryStateStore(), func() {}, nil
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repository.NewPostgresStateStore(db), db.Close, nil
}

// initRateLimiter returns the per-IP API limiter, or nil when rate limiting
// is disabled.
func initRateLimiter(cfg *config.Config, m *metrics.Metrics, events *metrics.BusinessEventLogger, logger *zap.Logger) *middleware.RateLimiter {
	perSecond := cfg.RateLimit.RequestsPerSecond()
	if perSecond <= 0 {
		logger.Warn("rate limiting disabled")
		return nil
	}
	rl := middleware.NewRateLimiter("api", perSecond, cfg.RateLimit.Burst, logger)
	rl.SetRecorder(m)
	rl.SetEventLogger(events)
	logger.Info("initialized rate limiter",
		zap.Int("requests", cfg.RateLimit.Requests),
		zap.Duration("window", cfg.RateLimit.Window),
		zap.Int("burst", cfg.RateLimit.Burst),
	)
	return rl
}
