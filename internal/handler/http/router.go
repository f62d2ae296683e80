package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/limpabem/promotion-service/pkg/health"
	"github.com/limpabem/promotion-service/pkg/middleware"
)

// RouterConfig holds the dependencies the router wires together.
type RouterConfig struct {
	PromotionHandler *PromotionHandler
	Health           *health.Handler
	Logger           *slog.Logger
	CORSOrigins      []string
}

// NewRouter builds the chi router with the full middleware chain and all
// promotion routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("promotion-service"))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", cfg.PromotionHandler.CreatePromotion)
		r.Get("/", cfg.PromotionHandler.ListPromotions)
		r.Post("/evaluate", cfg.PromotionHandler.Evaluate)
		r.Post("/usage", cfg.PromotionHandler.RegisterUsage)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.PromotionHandler.GetPromotion)
			r.Put("/", cfg.PromotionHandler.UpdatePromotion)
			r.Post("/deactivate", cfg.PromotionHandler.DeactivatePromotion)
		})
	})

	return r
}
