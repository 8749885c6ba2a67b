// Package api is the HTTP surface: the provider webhook, admin override
// endpoints, health, and metrics.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine"
	"github.com/leadflowhq/leadflow/engine/normalize"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/taskq"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Engine     *engine.Engine
	Normalizer *normalize.Normalizer
	Redis      *cache.Manager
	DB         *database.Manager
	Queue      *taskq.Queue
}

// Router builds the HTTP handler tree.
type Router struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *zap.Logger
}

// NewRouter creates the router.
func NewRouter(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Router {
	return &Router{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.String("component", "api")),
	}
}

// Handler returns the fully wired http.Handler.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/webhook", chain(
		http.HandlerFunc(rt.handleWebhook),
		RateLimit(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst),
	))

	admin := JWTAuth(rt.cfg.AdminJWTSecret, rt.logger)
	mux.Handle("POST /v1/contacts/{id}/pause", chain(http.HandlerFunc(rt.handlePause), admin))
	mux.Handle("POST /v1/contacts/{id}/resume", chain(http.HandlerFunc(rt.handleResume), admin))
	mux.Handle("GET /v1/contacts/{id}/history", chain(http.HandlerFunc(rt.handleHistory), admin))
	mux.Handle("GET /v1/stats", chain(http.HandlerFunc(rt.handleStats), admin))

	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return chain(mux,
		RequestID,
		Recovery(rt.logger),
		RequestLogger(rt.logger),
		Trace,
	)
}
