package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/posdesk/api/middleware"
	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/api/validators"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// SettingsHooks is the offline-aware surface of one settings collection.
type SettingsHooks[T any] interface {
	Get(ctx context.Context, ownerID string) (offline.QueryResult[*T], error)
	Save(ctx context.Context, record *T) (offline.MutationResult[T], error)
}

// Settings serves GET and PUT for a settings record keyed by its owner.
type Settings[T any] struct {
	hooks SettingsHooks[T]
	scope func(context.Context) string
	owner func(*T) *string
	logg  *logger.Logger
}

func NewStoreSettings[T any](hooks SettingsHooks[T], owner func(*T) *string, logg *logger.Logger) *Settings[T] {
	return &Settings[T]{hooks: hooks, scope: middleware.StoreIDFromContext, owner: owner, logg: logg}
}

func NewBusinessSettings[T any](hooks SettingsHooks[T], owner func(*T) *string, logg *logger.Logger) *Settings[T] {
	return &Settings[T]{hooks: hooks, scope: middleware.BusinessIDFromContext, owner: owner, logg: logg}
}

func (s *Settings[T]) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res, err := s.hooks.Get(ctx, s.scope(ctx))
		if err != nil {
			responses.WriteError(ctx, s.logg, w, err)
			return
		}
		responses.WriteQuery(w, res.Data, res.Source, res.FetchErr)
	}
}

func (s *Settings[T]) Save() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		record := new(T)
		if err := validators.DecodeJSONBody(r, record); err != nil {
			responses.WriteError(ctx, s.logg, w, err)
			return
		}
		*s.owner(record) = s.scope(ctx)
		res, err := s.hooks.Save(ctx, record)
		if err != nil {
			responses.WriteError(ctx, s.logg, w, err)
			return
		}
		responses.WriteMutation(w, http.StatusOK, res.Record, res.Status, res.QueueID)
	}
}
