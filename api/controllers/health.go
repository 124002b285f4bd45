package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/binarycomp-backend/api/responses"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

const (
	envHeader    = "X-MLM-Env"
	readyTimeout = 2 * time.Second
)

// Pinger is a dependency the API needs before it can take traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports which ones failed.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
