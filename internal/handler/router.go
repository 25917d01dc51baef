package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/audit"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/metrics"
	"github.com/jkindrix/zenquote/internal/middleware"
	"github.com/jkindrix/zenquote/internal/service"
)

// RouterConfig holds everything the HTTP surface depends on.
type RouterConfig struct {
	Logger       *zap.Logger
	Builder      *service.BuilderService
	Chat         *service.ChatService
	Proposals    *service.ProposalService
	Presentation *service.PresentationService
	Catalog      CatalogSource
	Health       HealthHandlerConfig
	LogLevel     zap.AtomicLevel

	// Optional.
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Audit       *audit.Logger
}

// NewRouter builds the chi router with the global middleware chain and all routes.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	base := NewBaseHandler(cfg.Logger)
	base.SetAuditLogger(cfg.Audit)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(middleware.NewRequestCorrelation(cfg.Logger).Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chimiddleware.Compress(5))

	if cfg.Health.Logger == nil {
		cfg.Health.Logger = cfg.Logger
	}
	NewHealthHandler(cfg.Health).RegisterRoutes(r)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	catalog := NewCatalogHandler(base, cfg.Catalog)
	sessions := NewSessionHandler(base, cfg.Builder, cfg.Chat)
	proposals := NewProposalHandler(base, cfg.Proposals, cfg.Presentation)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BodySizeLimiterJSON())
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(cfg.RateLimiter))
		}
		catalog.RegisterRoutes(r)
		sessions.RegisterRoutes(r)
		proposals.RegisterRoutes(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Handle("/log-level", NewLogLevelHandler(base, cfg.LogLevel))
		catalog.RegisterAdminRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		base.WriteError(w, req, apperrors.NotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		base.WriteJSON(w, req, http.StatusMethodNotAllowed, ErrorBody{
			Error:     apperrors.ErrorDetail{Code: apperrors.CodeInvalidInput, Message: "method not allowed"},
			RequestID: middleware.GetRequestID(req.Context()),
		})
	})

	return r
}
