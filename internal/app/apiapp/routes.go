package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/config"
	"github.com/ivankudzin/brokerreviews/internal/metrics"
	authsvc "github.com/ivankudzin/brokerreviews/internal/services/auth"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/handlers"
)

const webhookPath = "/webhooks/telegram"

type Dependencies struct {
	Router          handlers.CommandRouter
	Dedup           handlers.UpdateDeduplicator
	Limiter         handlers.CommandLimiter
	Submitter       handlers.ReviewSubmitter
	Lookup          handlers.ReviewLookup
	WebhookStatus   handlers.WebhookStatusSource
	JWT             *authsvc.JWTManager
	PipelineEnabled bool
	StoreName       string
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.PipelineEnabled, deps.StoreName)
	webhookHandler := handlers.NewWebhookHandler(deps.Router, deps.Dedup, deps.Limiter, handlers.WebhookConfig{
		Secret:       deps.Config.Telegram.WebhookSecret,
		Enabled:      deps.PipelineEnabled,
		MaxBodyBytes: deps.Config.HTTP.MaxBodyBytes,
	}, deps.Logger)
	reviewHandler := handlers.NewReviewHandler(deps.Submitter, deps.Lookup, deps.Logger)
	statusHandler := handlers.NewTelegramStatusHandler(deps.WebhookStatus, deps.Config.Telegram.WebhookEndpoint(), deps.Logger)

	var parser tokenParser
	if deps.JWT != nil {
		parser = deps.JWT
	}
	serviceAuthMW := ServiceAuthMiddleware(parser, deps.Logger)
	serviceRoleMW := RequireRole(deps.Config.Auth.ServiceRole)

	r.Get("/healthz", healthHandler.Handle)
	r.Handle("/metrics", metrics.Handler())

	if deps.Config.Telegram.WebhookSecret != "" {
		r.Post(webhookPath+"/{secret}", webhookHandler.Handle)
	} else {
		r.Post(webhookPath, webhookHandler.Handle)
	}

	r.Route("/internal", func(r chi.Router) {
		r.Use(serviceAuthMW, serviceRoleMW)
		r.Post("/reviews", reviewHandler.Submit)
		r.Get("/reviews/{id}", reviewHandler.Get)
		r.Get("/telegram/webhook", statusHandler.Get)
	})
}
