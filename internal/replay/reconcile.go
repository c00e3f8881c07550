package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/posdesk/internal/cache"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore"
)

type entityCache[T any] interface {
	Put(ctx context.Context, record *T) error
	Delete(ctx context.Context, id string) error
}

type keyed[T any] interface {
	*T
	RecordID() string
}

type reconcileFunc func(ctx context.Context, tempID string, server json.RawMessage) error

// CacheReconciler replaces temp records in the entity caches.
type CacheReconciler struct {
	store *localstore.Store
	fns   map[enums.Collection]reconcileFunc
}

func NewCacheReconciler(store *localstore.Store, c *cache.Caches) *CacheReconciler {
	r := &CacheReconciler{store: store, fns: map[enums.Collection]reconcileFunc{}}
	bind[models.Product](r, c.Products.Collection(), c.Products)
	bind[models.Customer](r, c.Customers.Collection(), c.Customers)
	bind[models.Sale](r, c.Sales.Collection(), c.Sales)
	bind[models.SavedCart](r, c.SavedCarts.Collection(), c.SavedCarts)
	bind[models.Store](r, c.Stores.Collection(), c.Stores)
	bind[models.Category](r, c.Categories.Collection(), c.Categories)
	bind[models.Brand](r, c.Brands.Collection(), c.Brands)
	bind[models.Supplier](r, c.Suppliers.Collection(), c.Suppliers)
	return r
}

func bind[T any, P keyed[T]](r *CacheReconciler, table enums.Collection, c entityCache[T]) {
	r.fns[table] = func(ctx context.Context, tempID string, server json.RawMessage) error {
		var record T
		if err := json.Unmarshal(server, &record); err != nil {
			return errors.Wrap(errors.CodeValidation, err, fmt.Sprintf("decode %s server record", table))
		}
		if P(&record).RecordID() == "" {
			return nil
		}
		return r.store.WithTx(ctx, func(ctx context.Context) error {
			if err := c.Delete(ctx, tempID); err != nil {
				return err
			}
			return c.Put(ctx, &record)
		})
	}
}

// Reconcile implements Reconciler.
func (r *CacheReconciler) Reconcile(ctx context.Context, table enums.Collection, tempID string, server json.RawMessage) error {
	fn, ok := r.fns[table]
	if !ok {
		return nil
	}
	return fn(ctx, tempID, server)
}
