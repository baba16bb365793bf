package controllers

import (
	"net/http"

	"github.com/promptstudio-ai/promptstudio-backend/api/responses"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/config"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PromptStudio-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when the backing stores answer.
func HealthReady(cfg *config.Config, database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-PromptStudio-Env", cfg.App.Env)

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
