package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"comments-api/application/commands/bus"
	querybus "comments-api/application/queries/bus"
	"comments-api/interfaces/http/rest/handlers"
	"comments-api/interfaces/http/rest/middleware"
	"comments-api/pkg/auth"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether the backing store can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options configures the router. Nil collaborators switch their feature off.
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string

	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Validator *auth.JWTValidator
	Limiter   *auth.IPRateLimiter
	Ready     ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	opts       Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.opts.Tracer.Middleware)
	if rt.opts.Metrics != nil {
		router.Use(middleware.Metrics(rt.opts.Metrics))
	}

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	comments := handlers.NewCommentHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
	moderatorOnly := middleware.RequireRole(rt.opts.Validator, rt.errors, rt.logger, auth.RoleModerator)

	router.Route("/comments", func(r chi.Router) {
		r.With(middleware.RateLimit(rt.opts.Limiter, rt.errors, rt.logger)).Post("/", comments.PostComment)
		r.Get("/", comments.ListComments)
		r.With(moderatorOnly).Patch("/{id}", comments.PatchComment)
		r.With(moderatorOnly).Delete("/{id}", comments.DeleteComment)
	})
	router.Get("/main-comments", comments.ListMainComments)

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	rt.respondStatus(w, http.StatusOK, "healthy")
}

// readinessCheck reports whether the store answers within a short deadline.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.opts.Ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.respondStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	rt.respondStatus(w, http.StatusOK, "ready")
}

func (rt *Router) respondStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
