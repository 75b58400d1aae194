package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phbpx/contact-intake/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
	Contact        *ContactHandler
	Health         *HealthHandler
	RateLimiter    *RateLimiter

	// TrustForwardedFor lets True-Client-IP, X-Real-IP and X-Forwarded-For
	// replace the socket address. Only enable it behind a proxy that
	// overwrites those headers, since clients can set them freely.
	TrustForwardedFor bool
}

// NewRouter builds the public HTTP surface:
//
//	POST /api/contact
//	GET  /api/health
//	GET  /api/readiness
//	GET  /metrics
func NewRouter(cfg RouterConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustForwardedFor {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         86400,
	}))

	r.Route("/api", func(r chi.Router) {
		r.With(cfg.RateLimiter.Handler).Post("/contact", cfg.Contact.Create)
		r.Get("/health", cfg.Health.Liveness)
		r.Get("/readiness", cfg.Health.Readiness)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
