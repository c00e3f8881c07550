package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// ReferenceHooks lists a global reference collection.
type ReferenceHooks[T any] interface {
	List(ctx context.Context) (offline.QueryResult[[]T], error)
}

func ListReference[T any](hooks ReferenceHooks[T], logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := hooks.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteQuery(w, res.Data, res.Source, res.FetchErr)
	}
}
