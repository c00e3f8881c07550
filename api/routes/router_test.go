package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/posdesk/internal/cache"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	"github.com/angelmondragon/posdesk/pkg/localstore/localstoretest"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
	"github.com/angelmondragon/posdesk/pkg/remote"
	"github.com/angelmondragon/posdesk/pkg/types"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  *types.Meta     `json:"meta"`
	Error *types.APIError `json:"error"`
}

type testAgent struct {
	handler       http.Handler
	upstreamCalls atomic.Int32
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	agent := &testAgent{}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.upstreamCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/products" && r.URL.Query().Get("store_id") == "S1":
			_, _ = io.WriteString(w, `{"data":[{"id":"P1","store_id":"S1","name":"Cola","barcode":"7501","price":"1.50","cost_price":"1.00","stock_quantity":10,"min_stock_level":1,"is_active":true}]}`)
		case r.URL.Path == "/health/live":
			_, _ = io.WriteString(w, `{"data":{"status":"live"}}`)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		App:    config.AppConfig{Env: "test"},
		Remote: config.RemoteConfig{BaseURL: upstream.URL},
	}
	logg := logger.Nop()
	store := localstoretest.New(t)
	reg := prometheus.NewRegistry()
	cacheMetrics := metrics.NewCacheMetrics(reg)
	caches := cache.New(cache.Params{Store: store, Metrics: cacheMetrics})
	queue := syncqueue.New(store, logg)
	client, err := remote.New(cfg.Remote, logg, remote.WithReadRetries(0, 0))
	if err != nil {
		t.Fatalf("remote client: %v", err)
	}
	monitor := connectivity.New(client, cfg.Connectivity, logg)
	hooks, err := offline.New(offline.Params{
		Store:    store,
		Caches:   caches,
		Queue:    queue,
		Upstream: client,
		Signal:   monitor,
		Metrics:  cacheMetrics,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("hooks: %v", err)
	}
	agent.handler = NewRouter(Params{
		Config:       cfg,
		Logger:       logg,
		Store:        store,
		Hooks:        hooks,
		Caches:       caches,
		Queue:        queue,
		Connectivity: monitor,
		Gatherer:     reg,
	})
	return agent
}

func (a *testAgent) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

const saleBody = `{"cashier_id":"C1","items":[{"product_id":"P1","quantity":3,"unit_price":"1.50","discount":"0","total":"4.50"}],` +
	`"subtotal":"4.50","tax_amount":"0","discount_amount":"0","total_amount":"4.50","payment_method":"cash","status":"completed"}`

func TestHealthRoutes(t *testing.T) {
	agent := newTestAgent(t)

	rec, _ := agent.do(t, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from live, got %d", rec.Code)
	}
	if rec.Header().Get("X-Posdesk-Env") != "test" {
		t.Fatalf("expected env header")
	}

	rec, env := agent.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from ready, got %d: %s", rec.Code, rec.Body.String())
	}
	var ready struct {
		Status        string `json:"status"`
		SchemaVersion int64  `json:"schema_version"`
	}
	if err := json.Unmarshal(env.Data, &ready); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if ready.Status != "ready" || ready.SchemaVersion < 1 {
		t.Fatalf("unexpected ready payload %+v", ready)
	}
}

func TestOfflineSaleReturnsAcceptedAndIsQueued(t *testing.T) {
	agent := newTestAgent(t)

	rec, _ := agent.do(t, http.MethodPut, "/api/v1/connectivity", `{"online":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("override: expected 200 got %d", rec.Code)
	}

	rec, env := agent.do(t, http.MethodPost, "/api/v1/stores/S1/sales", saleBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	if env.Meta == nil || env.Meta.Status != "pending_sync" || env.Meta.Message != "saved offline, will sync" {
		t.Fatalf("unexpected meta %+v", env.Meta)
	}
	var sale struct {
		ID      string `json:"id"`
		StoreID string `json:"store_id"`
		IsTemp  bool   `json:"is_temp"`
	}
	if err := json.Unmarshal(env.Data, &sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if !offline.IsTempID(sale.ID) || !sale.IsTemp || sale.StoreID != "S1" {
		t.Fatalf("expected temp sale scoped to S1, got %+v", sale)
	}
	if agent.upstreamCalls.Load() != 0 {
		t.Fatalf("offline sale must not reach upstream")
	}

	rec, env = agent.do(t, http.MethodGet, "/api/v1/sync/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200 got %d", rec.Code)
	}
	var status struct {
		Online  bool           `json:"online"`
		Pending int64          `json:"pending"`
		ByTable map[string]int `json:"by_table"`
	}
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Online || status.Pending != 1 || status.ByTable["sales"] != 1 {
		t.Fatalf("unexpected sync status %+v", status)
	}

	rec, env = agent.do(t, http.MethodGet, "/api/v1/stores/S1/sales?cashier_id=C1", "")
	if rec.Code != http.StatusOK || env.Meta.Source != "cache" {
		t.Fatalf("expected cached sales list, got %d %+v", rec.Code, env.Meta)
	}

	rec, env = agent.do(t, http.MethodDelete, "/api/v1/cache", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while changes are pending, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error %+v", env.Error)
	}

	rec, _ = agent.do(t, http.MethodPost, "/api/v1/sync/flush", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("flush without a replayer: expected 503 got %d", rec.Code)
	}
}

func TestSaleValidationRejectsEmptyItems(t *testing.T) {
	agent := newTestAgent(t)
	rec, env := agent.do(t, http.MethodPost, "/api/v1/stores/S1/sales", `{"cashier_id":"C1","items":[],"payment_method":"cash"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestProductsNetworkThenCacheFallback(t *testing.T) {
	agent := newTestAgent(t)

	rec, env := agent.do(t, http.MethodGet, "/api/v1/stores/S1/products", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if env.Meta.Source != "network" {
		t.Fatalf("expected network source, got %+v", env.Meta)
	}

	rec, env = agent.do(t, http.MethodGet, "/api/v1/stores/S1/products/barcode/7501", "")
	if rec.Code != http.StatusOK || env.Meta.Source != "cache" {
		t.Fatalf("barcode lookup: got %d %+v", rec.Code, env.Meta)
	}

	agent.do(t, http.MethodPut, "/api/v1/connectivity", `{"online":false}`)
	rec, env = agent.do(t, http.MethodGet, "/api/v1/stores/S1/products", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("offline list: expected 200 got %d", rec.Code)
	}
	if env.Meta.Source != "cache" || env.Meta.Warning == "" {
		t.Fatalf("expected cache source with warning, got %+v", env.Meta)
	}
	var products []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 1 || products[0].ID != "P1" {
		t.Fatalf("unexpected cached products %+v", products)
	}

	rec, env = agent.do(t, http.MethodGet, "/api/v1/stores/S2/products", "")
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "OFFLINE" {
		t.Fatalf("expected OFFLINE for an uncached store, got %d %+v", rec.Code, env.Error)
	}

	rec, _ = agent.do(t, http.MethodGet, "/api/v1/cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cache status: expected 200 got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	agent := newTestAgent(t)
	agent.do(t, http.MethodGet, "/api/v1/stores/S1/products", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	agent.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "posdesk_") {
		t.Fatalf("expected posdesk metrics in output")
	}
}
