package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/arbfilter/internal/api/handlers"
	"github.com/wonny/arbfilter/pkg/config"
	"github.com/wonny/arbfilter/pkg/logger"
	"github.com/wonny/arbfilter/pkg/redis"
)

// Deps holds everything the router wires
type Deps struct {
	Runs   *handlers.RunHandler
	Stream *handlers.StreamHandler
	Health *handlers.HealthHandler

	// Registry backs /metrics and the HTTP collectors
	Registry *prometheus.Registry

	// SubmitLimiter shares the POST /api/runs budget across instances (optional)
	SubmitLimiter *redis.RateLimiter

	API    config.APIConfig
	Logger *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", d.Health.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})).Methods("GET")

	// Run event stream (not rate limited: one long-lived request)
	r.HandleFunc("/ws/runs", d.Stream.Runs).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(rateLimitMiddleware(newClientLimiter(d.API.RateLimit, d.API.Burst), d.Logger))

	submit := api.Methods("POST").Subrouter()
	submit.Use(submitLimitMiddleware(d.SubmitLimiter, d.API.SubmitPerMinute, d.Logger))
	submit.HandleFunc("/runs", d.Runs.Submit)

	api.HandleFunc("/runs", d.Runs.List).Methods("GET")
	api.HandleFunc("/runs/{id}", d.Runs.Get).Methods("GET")
	api.HandleFunc("/runs/{id}/quotes", d.Runs.Quotes).Methods("GET")
	api.HandleFunc("/runs/{id}/bounds", d.Runs.Bounds).Methods("GET")
	api.HandleFunc("/runs/{id}/errors", d.Runs.Errors).Methods("GET")

	// Apply middleware
	r.Use(metricsMiddleware(newHTTPMetrics(d.Registry)))
	r.Use(loggingMiddleware(d.Logger))
	r.Use(recoveryMiddleware(d.Logger))

	return r
}
