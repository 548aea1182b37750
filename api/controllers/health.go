package controllers

import (
	"net/http"

	"github.com/dripspot/dripspot-backend/api/responses"
	"github.com/dripspot/dripspot-backend/pkg/config"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DripSpot-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the datasources the request path depends on.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DripSpot-Env", cfg.App.Env)

		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(r); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
