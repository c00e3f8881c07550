package cache

import (
	"context"
	"time"

	"github.com/angelmondragon/posdesk/internal/freshness"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
)

// Caches groups the entity caches over one local store.
type Caches struct {
	store   *localstore.Store
	tracker *freshness.Tracker

	Products   *Scoped[models.Product]
	Customers  *Scoped[models.Customer]
	Sales      *Scoped[models.Sale]
	SavedCarts *Scoped[models.SavedCart]

	Stores     *Scoped[models.Store]
	Categories *Scoped[models.Category]
	Brands     *Scoped[models.Brand]
	Suppliers  *Scoped[models.Supplier]

	BusinessSettings *Settings[models.BusinessSettings]
	StoreSettings    *Settings[models.StoreSettings]

	Languages  *Global[models.Language]
	Currencies *Global[models.Currency]
	Countries  *Global[models.Country]

	productsByBarcode localstore.Index[models.Product]
	cartsByCashier    localstore.Index[models.SavedCart]
	products          *localstore.Collection[models.Product]
	carts             *localstore.Collection[models.SavedCart]
}

type Params struct {
	Store   *localstore.Store
	Tracker *freshness.Tracker
	Metrics *metrics.CacheMetrics
	Logger  *logger.Logger
	// WriteThroughMinInterval skips rewriting a scope whose payload is
	// unchanged and was written less than this long ago. Zero disables it.
	WriteThroughMinInterval time.Duration
	// FreshnessMaxAge and Now configure the tracker built when Tracker is nil.
	FreshnessMaxAge time.Duration
	Now             func() time.Time
}

func New(p Params) *Caches {
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tracker := p.Tracker
	if tracker == nil {
		opts := []freshness.Option{freshness.WithDefaultMaxAge(p.FreshnessMaxAge)}
		if p.Now != nil {
			opts = append(opts, freshness.WithClock(p.Now))
		}
		tracker = freshness.NewTracker(p.Store, opts...)
	}
	d := deps{tracker: tracker, metrics: p.Metrics, logg: logg, throttle: p.WriteThroughMinInterval}
	s := p.Store

	products := localstore.MustCollection[models.Product](s, enums.CollectionProducts)
	carts := localstore.MustCollection[models.SavedCart](s, enums.CollectionSavedCarts)

	return &Caches{
		store:   s,
		tracker: tracker,

		Products:   newScoped(s, d, enums.CollectionProducts, "store_id", func(r *models.Product) *string { return &r.StoreID }),
		Customers:  newScoped(s, d, enums.CollectionCustomers, "store_id", func(r *models.Customer) *string { return &r.StoreID }),
		Sales:      newScoped(s, d, enums.CollectionSales, "store_id", func(r *models.Sale) *string { return &r.StoreID }),
		SavedCarts: newScoped(s, d, enums.CollectionSavedCarts, "store_id", func(r *models.SavedCart) *string { return &r.StoreID }),

		Stores:     newScoped(s, d, enums.CollectionStores, "business_id", func(r *models.Store) *string { return &r.BusinessID }),
		Categories: newScoped(s, d, enums.CollectionCategories, "business_id", func(r *models.Category) *string { return &r.BusinessID }),
		Brands:     newScoped(s, d, enums.CollectionBrands, "business_id", func(r *models.Brand) *string { return &r.BusinessID }),
		Suppliers:  newScoped(s, d, enums.CollectionSuppliers, "business_id", func(r *models.Supplier) *string { return &r.BusinessID }),

		BusinessSettings: newSettings(s, d, enums.CollectionBusinessSettings, func(r *models.BusinessSettings) *string { return &r.BusinessID }),
		StoreSettings:    newSettings(s, d, enums.CollectionStoreSettings, func(r *models.StoreSettings) *string { return &r.StoreID }),

		Languages:  newGlobal[models.Language](s, d, enums.CollectionLanguages),
		Currencies: newGlobal[models.Currency](s, d, enums.CollectionCurrencies),
		Countries:  newGlobal[models.Country](s, d, enums.CollectionCountries),

		productsByBarcode: products.MustIndex("barcode"),
		cartsByCashier:    carts.MustIndex("cashier_id"),
		products:          products,
		carts:             carts,
	}
}

// Tracker returns the freshness tracker the caches touch.
func (c *Caches) Tracker() *freshness.Tracker {
	return c.tracker
}

// Store returns the underlying local store.
func (c *Caches) Store() *localstore.Store {
	return c.store
}

func (c *Caches) ProductsByStore(ctx context.Context, storeID string) []models.Product {
	return c.Products.ByScope(ctx, storeID)
}

func (c *Caches) CacheProducts(ctx context.Context, products []models.Product, storeID string) error {
	return c.Products.Cache(ctx, products, storeID)
}

// ProductByBarcode resolves a scanned barcode within one store.
func (c *Caches) ProductByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, bool) {
	for _, p := range c.products.GetByIndex(ctx, c.productsByBarcode, barcode) {
		if p.StoreID == storeID {
			return &p, true
		}
	}
	return nil, false
}

func (c *Caches) CustomersByStore(ctx context.Context, storeID string) []models.Customer {
	return c.Customers.ByScope(ctx, storeID)
}

func (c *Caches) CacheCustomers(ctx context.Context, customers []models.Customer, storeID string) error {
	return c.Customers.Cache(ctx, customers, storeID)
}

func (c *Caches) SalesByStore(ctx context.Context, storeID string) []models.Sale {
	return c.Sales.ByScope(ctx, storeID)
}

func (c *Caches) CacheSales(ctx context.Context, sales []models.Sale, storeID string) error {
	return c.Sales.Cache(ctx, sales, storeID)
}

func (c *Caches) SavedCartsByStore(ctx context.Context, storeID string) []models.SavedCart {
	return c.SavedCarts.ByScope(ctx, storeID)
}

// SavedCartsByCashier returns one cashier's parked carts within a store.
func (c *Caches) SavedCartsByCashier(ctx context.Context, storeID, cashierID string) []models.SavedCart {
	var out []models.SavedCart
	for _, cart := range c.carts.GetByIndex(ctx, c.cartsByCashier, cashierID) {
		if cart.StoreID == storeID {
			out = append(out, cart)
		}
	}
	if out == nil {
		out = []models.SavedCart{}
	}
	return out
}

func (c *Caches) CacheSavedCarts(ctx context.Context, carts []models.SavedCart, storeID string) error {
	return c.SavedCarts.Cache(ctx, carts, storeID)
}

func (c *Caches) StoresByBusiness(ctx context.Context, businessID string) []models.Store {
	return c.Stores.ByScope(ctx, businessID)
}

func (c *Caches) CacheStores(ctx context.Context, stores []models.Store, businessID string) error {
	return c.Stores.Cache(ctx, stores, businessID)
}

func (c *Caches) CategoriesByBusiness(ctx context.Context, businessID string) []models.Category {
	return c.Categories.ByScope(ctx, businessID)
}

func (c *Caches) CacheCategories(ctx context.Context, categories []models.Category, businessID string) error {
	return c.Categories.Cache(ctx, categories, businessID)
}

func (c *Caches) BrandsByBusiness(ctx context.Context, businessID string) []models.Brand {
	return c.Brands.ByScope(ctx, businessID)
}

func (c *Caches) CacheBrands(ctx context.Context, brands []models.Brand, businessID string) error {
	return c.Brands.Cache(ctx, brands, businessID)
}

func (c *Caches) SuppliersByBusiness(ctx context.Context, businessID string) []models.Supplier {
	return c.Suppliers.ByScope(ctx, businessID)
}

func (c *Caches) CacheSuppliers(ctx context.Context, suppliers []models.Supplier, businessID string) error {
	return c.Suppliers.Cache(ctx, suppliers, businessID)
}

func (c *Caches) GetBusinessSettings(ctx context.Context, businessID string) (*models.BusinessSettings, bool) {
	return c.BusinessSettings.Get(ctx, businessID)
}

func (c *Caches) CacheBusinessSettings(ctx context.Context, settings *models.BusinessSettings) error {
	return c.BusinessSettings.Cache(ctx, settings)
}

func (c *Caches) GetStoreSettings(ctx context.Context, storeID string) (*models.StoreSettings, bool) {
	return c.StoreSettings.Get(ctx, storeID)
}

func (c *Caches) CacheStoreSettings(ctx context.Context, settings *models.StoreSettings) error {
	return c.StoreSettings.Cache(ctx, settings)
}

func (c *Caches) CacheLanguages(ctx context.Context, languages []models.Language) error {
	return c.Languages.Cache(ctx, languages)
}

func (c *Caches) CacheCurrencies(ctx context.Context, currencies []models.Currency) error {
	return c.Currencies.Cache(ctx, currencies)
}

func (c *Caches) CacheCountries(ctx context.Context, countries []models.Country) error {
	return c.Countries.Cache(ctx, countries)
}

// Clear wipes every local collection, including pending offline mutations.
func (c *Caches) Clear(ctx context.Context) error {
	return c.store.ClearAllData(ctx)
}
