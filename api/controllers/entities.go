package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/api/middleware"
	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/api/validators"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// IDParam is the route parameter carrying a record id.
const IDParam = "id"

// EntityHooks is the offline-aware surface of one scoped collection.
type EntityHooks[T any] interface {
	Collection() enums.Collection
	List(ctx context.Context, scopeID string) (offline.QueryResult[[]T], error)
	Get(ctx context.Context, id string) (offline.QueryResult[*T], error)
	Create(ctx context.Context, record *T) (offline.MutationResult[T], error)
	Update(ctx context.Context, id string, record *T) (offline.MutationResult[T], error)
	Delete(ctx context.Context, id string) (offline.MutationResult[T], error)
}

// Entity serves CRUD routes for a store- or business-scoped collection.
type Entity[T any] struct {
	hooks  EntityHooks[T]
	scope  func(context.Context) string
	owner  func(*T) *string
	filter *listFilter[T]
	logg   *logger.Logger
}

type listFilter[T any] struct {
	param string
	match func(*T, string) bool
}

// NewStoreEntity binds hooks to the {storeID} route scope. owner points at the
// record's store_id field.
func NewStoreEntity[T any](hooks EntityHooks[T], owner func(*T) *string, logg *logger.Logger) *Entity[T] {
	return &Entity[T]{hooks: hooks, scope: middleware.StoreIDFromContext, owner: owner, logg: logg}
}

// NewBusinessEntity binds hooks to the {businessID} route scope.
func NewBusinessEntity[T any](hooks EntityHooks[T], owner func(*T) *string, logg *logger.Logger) *Entity[T] {
	return &Entity[T]{hooks: hooks, scope: middleware.BusinessIDFromContext, owner: owner, logg: logg}
}

// WithFilter narrows List results when the query parameter is present.
func (e *Entity[T]) WithFilter(param string, match func(*T, string) bool) *Entity[T] {
	e.filter = &listFilter[T]{param: param, match: match}
	return e
}

func (e *Entity[T]) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res, err := e.hooks.List(ctx, e.scope(ctx))
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		data := res.Data
		if e.filter != nil {
			if want := validators.SanitizeString(r.URL.Query().Get(e.filter.param), 128); want != "" {
				filtered := make([]T, 0, len(data))
				for i := range data {
					if e.filter.match(&data[i], want) {
						filtered = append(filtered, data[i])
					}
				}
				data = filtered
			}
		}
		responses.WriteQuery(w, data, res.Source, res.FetchErr)
	}
}

func (e *Entity[T]) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		res, err := e.hooks.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		if !e.owns(ctx, res.Data) {
			responses.WriteError(ctx, e.logg, w, e.notFound(id))
			return
		}
		responses.WriteQuery(w, res.Data, res.Source, res.FetchErr)
	}
}

func (e *Entity[T]) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		record := new(T)
		if err := validators.DecodeJSONBody(r, record); err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		*e.owner(record) = e.scope(ctx)
		res, err := e.hooks.Create(ctx, record)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		responses.WriteMutation(w, http.StatusCreated, res.Record, res.Status, res.QueueID)
	}
}

func (e *Entity[T]) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		record := new(T)
		if err := validators.DecodeJSONBody(r, record); err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		if err := e.authorize(ctx, id); err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		*e.owner(record) = e.scope(ctx)
		res, err := e.hooks.Update(ctx, id, record)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		responses.WriteMutation(w, http.StatusOK, res.Record, res.Status, res.QueueID)
	}
}

func (e *Entity[T]) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		if err := e.authorize(ctx, id); err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		res, err := e.hooks.Delete(ctx, id)
		if err != nil {
			responses.WriteError(ctx, e.logg, w, err)
			return
		}
		responses.WriteMutation(w, http.StatusOK, map[string]string{"id": id}, res.Status, res.QueueID)
	}
}

func (e *Entity[T]) owns(ctx context.Context, record *T) bool {
	return record != nil && *e.owner(record) == e.scope(ctx)
}

// authorize resolves id through the hooks and rejects records owned by
// another scope with the same 404 a Get would answer.
func (e *Entity[T]) authorize(ctx context.Context, id string) error {
	res, err := e.hooks.Get(ctx, id)
	if err != nil {
		return err
	}
	if !e.owns(ctx, res.Data) {
		return e.notFound(id)
	}
	return nil
}

func (e *Entity[T]) notFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, string(e.hooks.Collection())+" "+id+" not found")
}

func recordID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, IDParam))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "record id missing")
	}
	return id, nil
}
