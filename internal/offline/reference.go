package offline

import (
	"context"
	"time"

	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/remote"
)

type globalCache[T any] interface {
	Collection() enums.Collection
	All(ctx context.Context) []T
	Cache(ctx context.Context, records []T) error
}

// Reference hooks read-only reference data (languages, currencies, countries).
type Reference[T any] struct {
	env   *env
	cache globalCache[T]
}

func newReference[T any](e *env, c globalCache[T]) *Reference[T] {
	return &Reference[T]{env: e, cache: c}
}

// Collection returns the hooked collection.
func (r *Reference[T]) Collection() enums.Collection {
	return r.cache.Collection()
}

// List fetches the full reference list, falling back to the cache.
func (r *Reference[T]) List(ctx context.Context) (QueryResult[[]T], error) {
	table := r.Collection()

	var fetchErr error
	if r.env.online() {
		var fetched []T
		err := r.env.upstream.Get(ctx, remote.CollectionPath(table), nil, &fetched)
		if err == nil {
			if fetched == nil {
				fetched = []T{}
			}
			r.env.writeThrough(ctx, table, r.cache.Cache(ctx, fetched))
			r.env.servedFromNetwork(table)
			return QueryResult[[]T]{Data: fetched, Source: enums.DataSourceNetwork}, nil
		}
		fetchErr = err
	} else {
		fetchErr = errOffline(table)
	}

	cached := r.cache.All(ctx)
	if len(cached) == 0 {
		return QueryResult[[]T]{Data: []T{}, Source: enums.DataSourceCache, FetchErr: fetchErr}, r.env.fallback(table, fetchErr)
	}
	r.env.servedFromCache(ctx, table, fetchErr)
	return QueryResult[[]T]{Data: cached, Source: enums.DataSourceCache, FetchErr: fetchErr}, nil
}

// Refresh refetches the list when its cache is older than maxAge. It
// reports whether a network fetch happened.
func (r *Reference[T]) Refresh(ctx context.Context, maxAge time.Duration) (bool, error) {
	if r.env.tracker.IsFresh(ctx, r.Collection(), maxAge) || !r.env.online() {
		return false, nil
	}
	res, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	if res.Source != enums.DataSourceNetwork {
		return false, res.FetchErr
	}
	return true, nil
}
