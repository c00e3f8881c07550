package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/posdesk/api/controllers"
	"github.com/angelmondragon/posdesk/api/middleware"
	"github.com/angelmondragon/posdesk/internal/cache"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/redis"
)

// Params wires the agent's HTTP surface.
type Params struct {
	Config *config.Config
	Logger *logger.Logger
	Store  controllers.LocalStore
	Hooks  *offline.Hooks
	Caches *cache.Caches
	Queue  *syncqueue.Queue
	// Replayer is nil when replay runs in the separate sync worker.
	Replayer     controllers.Replayer
	Connectivity controllers.ConnectivityOverride
	// Idempotency is optional; create requests are not deduplicated without it.
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg, logg, h := p.Config, p.Logger, p.Hooks

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.Store, p.Connectivity, logg))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if p.Idempotency != nil {
			r.Use(middleware.Idempotency(p.Idempotency, logg))
		}

		r.Route("/stores/{storeID}", func(r chi.Router) {
			r.Use(middleware.StoreContext(logg))

			mountEntity(r, "/products",
				controllers.NewStoreEntity[models.Product](h.Products, func(m *models.Product) *string { return &m.StoreID }, logg),
				func(r chi.Router) {
					r.Get("/barcode/{barcode}", controllers.ProductByBarcode(p.Caches, logg))
				})
			mountEntity(r, "/customers",
				controllers.NewStoreEntity[models.Customer](h.Customers, func(m *models.Customer) *string { return &m.StoreID }, logg), nil)
			mountEntity(r, "/sales",
				controllers.NewStoreEntity[models.Sale](h.Sales, func(m *models.Sale) *string { return &m.StoreID }, logg).
					WithFilter("cashier_id", func(m *models.Sale, v string) bool { return m.CashierID == v }), nil)
			mountEntity(r, "/saved-carts",
				controllers.NewStoreEntity[models.SavedCart](h.SavedCarts, func(m *models.SavedCart) *string { return &m.StoreID }, logg).
					WithFilter("cashier_id", func(m *models.SavedCart, v string) bool { return m.CashierID == v }), nil)

			settings := controllers.NewStoreSettings[models.StoreSettings](h.StoreSettings, func(m *models.StoreSettings) *string { return &m.StoreID }, logg)
			r.Get("/settings", settings.Get())
			r.Put("/settings", settings.Save())
		})

		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Use(middleware.BusinessContext(logg))

			mountEntity(r, "/stores",
				controllers.NewBusinessEntity[models.Store](h.Stores, func(m *models.Store) *string { return &m.BusinessID }, logg), nil)
			mountEntity(r, "/categories",
				controllers.NewBusinessEntity[models.Category](h.Categories, func(m *models.Category) *string { return &m.BusinessID }, logg), nil)
			mountEntity(r, "/brands",
				controllers.NewBusinessEntity[models.Brand](h.Brands, func(m *models.Brand) *string { return &m.BusinessID }, logg), nil)
			mountEntity(r, "/suppliers",
				controllers.NewBusinessEntity[models.Supplier](h.Suppliers, func(m *models.Supplier) *string { return &m.BusinessID }, logg), nil)

			settings := controllers.NewBusinessSettings[models.BusinessSettings](h.BusinessSettings, func(m *models.BusinessSettings) *string { return &m.BusinessID }, logg)
			r.Get("/settings", settings.Get())
			r.Put("/settings", settings.Save())
		})

		r.Route("/reference", func(r chi.Router) {
			r.Get("/languages", controllers.ListReference[models.Language](h.Languages, logg))
			r.Get("/currencies", controllers.ListReference[models.Currency](h.Currencies, logg))
			r.Get("/countries", controllers.ListReference[models.Country](h.Countries, logg))
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", controllers.SyncStatus(p.Queue, p.Replayer, p.Connectivity))
			r.Get("/queue", controllers.ListSyncQueue(p.Queue, logg))
			r.Get("/dead-letters", controllers.ListDeadLetters(p.Queue, logg))
			r.Post("/dead-letters/{deadLetterID}/requeue", controllers.RequeueDeadLetter(p.Queue, logg))
			r.Post("/flush", controllers.FlushSync(p.Replayer, logg))
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", controllers.CacheStatus(p.Caches.Tracker()))
			r.Delete("/", controllers.ClearCache(p.Caches, p.Queue, logg))
		})

		r.Put("/connectivity", controllers.SetConnectivity(p.Connectivity, logg))
	})

	return r
}

func mountEntity[T any](r chi.Router, path string, e *controllers.Entity[T], extra func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", e.List())
		r.Post("/", e.Create())
		if extra != nil {
			extra(r)
		}
		r.Get("/{id}", e.Get())
		r.Put("/{id}", e.Update())
		r.Delete("/{id}", e.Delete())
	})
}
