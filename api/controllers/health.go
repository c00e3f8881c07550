package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

const envHeader = "X-Posdesk-Env"

// LocalStore is the slice of the local store the readiness probe needs.
type LocalStore interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready once the local store answers. Being offline does
// not make the agent unready; the POS keeps working from cache.
func HealthReady(cfg *config.Config, store LocalStore, signal connectivity.Signal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		if err := store.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local store unavailable"))
			return
		}
		version, err := store.SchemaVersion(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read schema version"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status":         "ready",
			"online":         signal.Online(),
			"schema_version": version,
		})
	}
}
