package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/api/validators"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// FreshnessReader lists cache metadata.
type FreshnessReader interface {
	All(ctx context.Context) []models.CacheMetadata
}

// CacheClearer wipes every local collection.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// PendingCounter reports queued mutations.
type PendingCounter interface {
	Count(ctx context.Context) int64
}

func CacheStatus(tracker FreshnessReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, tracker.All(r.Context()))
	}
}

// ClearCache wipes local data. Pending mutations are lost with it, so the
// request is refused while any are queued unless force=true.
func ClearCache(caches CacheClearer, queue PendingCounter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		force, err := validators.ParseQueryBool(r, "force", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if pending := queue.Count(ctx); pending > 0 && !force {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "pending offline changes would be lost").
				WithDetails(map[string]any{"pending": pending}))
			return
		}
		if err := caches.Clear(ctx); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Warn(ctx, "local cache cleared")
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// ConnectivityOverride forces the online flag, or clears the override when
// online is null.
type ConnectivityOverride interface {
	Online() bool
	SetOnline(online bool)
	ClearOverride()
}

type overrideRequest struct {
	Online *bool `json:"online"`
}

func SetConnectivity(monitor ConnectivityOverride, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body overrideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Online == nil {
			monitor.ClearOverride()
		} else {
			monitor.SetOnline(*body.Online)
		}
		responses.WriteSuccess(w, map[string]bool{"online": monitor.Online()})
	}
}
