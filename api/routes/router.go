package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptstudio-ai/promptstudio-backend/api/controllers"
	webhookcontrollers "github.com/promptstudio-ai/promptstudio-backend/api/controllers/webhooks"
	"github.com/promptstudio-ai/promptstudio-backend/api/middleware"
	"github.com/promptstudio-ai/promptstudio-backend/internal/payments"
	piprapaywebhook "github.com/promptstudio-ai/promptstudio-backend/internal/webhooks/piprapay"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/config"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/metrics"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/redis"
)

type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	Payments        *payments.Service
	WebhookService  *piprapaywebhook.Service
	WebhookVerifier *piprapaywebhook.Verifier
	WebhookGuard    webhookcontrollers.Guard
	WebhookMetrics  *metrics.WebhookMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/piprapay", webhookcontrollers.PipraPayWebhook(p.WebhookService, p.WebhookVerifier, p.WebhookGuard, p.WebhookMetrics, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/checkout", controllers.InitiateCheckout(p.Payments, logg))
		r.Get("/{transactionID}", controllers.GetPayment(p.Payments, logg))
		r.Get("/{transactionID}/verify", controllers.VerifyPayment(p.Payments, logg))
		r.Post("/{transactionID}/cancel", controllers.CancelPayment(p.Payments, logg))
	})

	return r
}
