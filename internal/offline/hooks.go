package offline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/posdesk/internal/cache"
	"github.com/angelmondragon/posdesk/internal/freshness"
	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
)

// TempIDPrefix marks records created while offline.
const TempIDPrefix = "temp-"

// Upstream is the subset of the REST client the hooks need.
type Upstream interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body any, idempotencyKey string, out any) error
	Put(ctx context.Context, path string, body any, idempotencyKey string, out any) error
	Delete(ctx context.Context, path string, idempotencyKey string) error
}

// QueryResult carries query data and where it came from. FetchErr is set
// when the network attempt failed and the cache answered instead.
type QueryResult[T any] struct {
	Data     T
	Source   enums.DataSource
	FetchErr error
}

// MutationResult separates writes confirmed upstream from writes queued
// for replay.
type MutationResult[T any] struct {
	Record  *T
	Status  enums.MutationStatus
	QueueID string
}

// Params wires the hooks.
type Params struct {
	Store    *localstore.Store
	Caches   *cache.Caches
	Queue    *syncqueue.Queue
	Upstream Upstream
	Signal   connectivity.Signal
	Metrics  *metrics.CacheMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// Hooks exposes network-first queries and offline-aware mutations per
// collection.
type Hooks struct {
	env *env

	Products   *Entity[models.Product, *models.Product]
	Customers  *Entity[models.Customer, *models.Customer]
	Sales      *Entity[models.Sale, *models.Sale]
	SavedCarts *Entity[models.SavedCart, *models.SavedCart]

	Stores     *Entity[models.Store, *models.Store]
	Categories *Entity[models.Category, *models.Category]
	Brands     *Entity[models.Brand, *models.Brand]
	Suppliers  *Entity[models.Supplier, *models.Supplier]

	BusinessSettings *Settings[models.BusinessSettings, *models.BusinessSettings]
	StoreSettings    *Settings[models.StoreSettings, *models.StoreSettings]

	Languages  *Reference[models.Language]
	Currencies *Reference[models.Currency]
	Countries  *Reference[models.Country]
}

// env is shared by every hook.
type env struct {
	store    *localstore.Store
	tracker  *freshness.Tracker
	queue    *syncqueue.Queue
	upstream Upstream
	signal   connectivity.Signal
	metrics  *metrics.CacheMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func New(p Params) (*Hooks, error) {
	switch {
	case p.Store == nil:
		return nil, fmt.Errorf("local store is required")
	case p.Caches == nil:
		return nil, fmt.Errorf("caches are required")
	case p.Queue == nil:
		return nil, fmt.Errorf("sync queue is required")
	case p.Upstream == nil:
		return nil, fmt.Errorf("upstream client is required")
	case p.Signal == nil:
		return nil, fmt.Errorf("connectivity signal is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	e := &env{
		store:    p.Store,
		tracker:  p.Caches.Tracker(),
		queue:    p.Queue,
		upstream: p.Upstream,
		signal:   p.Signal,
		metrics:  p.Metrics,
		logg:     logg,
		now:      now,
	}
	c := p.Caches
	return &Hooks{
		env:        e,
		Products:   newEntity[models.Product](e, c.Products, "store_id"),
		Customers:  newEntity[models.Customer](e, c.Customers, "store_id"),
		Sales:      newEntity[models.Sale](e, c.Sales, "store_id"),
		SavedCarts: newEntity[models.SavedCart](e, c.SavedCarts, "store_id"),

		Stores:     newEntity[models.Store](e, c.Stores, "business_id"),
		Categories: newEntity[models.Category](e, c.Categories, "business_id"),
		Brands:     newEntity[models.Brand](e, c.Brands, "business_id"),
		Suppliers:  newEntity[models.Supplier](e, c.Suppliers, "business_id"),

		BusinessSettings: newSettings[models.BusinessSettings](e, c.BusinessSettings),
		StoreSettings:    newSettings[models.StoreSettings](e, c.StoreSettings),

		Languages:  newReference[models.Language](e, c.Languages),
		Currencies: newReference[models.Currency](e, c.Currencies),
		Countries:  newReference[models.Country](e, c.Countries),
	}, nil
}

// Online reports the connectivity signal the mutation hooks gate on.
func (h *Hooks) Online() bool {
	return h.env.signal.Online()
}

// NewTempID returns an id for a record created offline:
// temp-<unix-ms>-<8 hex>.
func NewTempID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d-%s", TempIDPrefix, now.UnixMilli(), suffix)
}

// IsTempID reports whether id was minted by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

func (e *env) online() bool {
	return e.signal.Online()
}

// fallback decides what a failed fetch turns into when the cache has nothing.
func (e *env) fallback(table enums.Collection, fetchErr error) error {
	if errors.IsCode(fetchErr, errors.CodeNotFound) {
		return fetchErr
	}
	return errors.Wrap(errors.CodeOffline, fetchErr, fmt.Sprintf("no cached %s", table))
}

func (e *env) servedFromCache(ctx context.Context, table enums.Collection, fetchErr error) {
	e.metrics.IncRead(string(table), string(enums.DataSourceCache))
	fields := map[string]any{"collection": table}
	if fetchErr != nil {
		fields["error"] = fetchErr.Error()
	}
	e.logg.Debug(e.logg.WithFields(ctx, fields), "query served from cache")
}

func (e *env) servedFromNetwork(table enums.Collection) {
	e.metrics.IncRead(string(table), string(enums.DataSourceNetwork))
}

// writeThrough logs and swallows cache write failures after a successful
// network round-trip.
func (e *env) writeThrough(ctx context.Context, table enums.Collection, err error) {
	if err == nil {
		return
	}
	e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
		"collection": table,
		"error":      err.Error(),
	}), "write-through to local cache failed")
}

// errOffline is the FetchErr recorded when the signal skipped the network.
func errOffline(table enums.Collection) error {
	return errors.New(errors.CodeOffline, fmt.Sprintf("%s fetch skipped while offline", table))
}
