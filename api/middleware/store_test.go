package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/pkg/logger"
)

func TestStoreContextLiftsRouteParam(t *testing.T) {
	r := chi.NewRouter()
	var seen string
	r.With(StoreContext(logger.Nop())).Get("/stores/{storeID}/products", func(w http.ResponseWriter, r *http.Request) {
		seen = StoreIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stores/s-42/products", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if seen != "s-42" {
		t.Fatalf("expected store s-42 in context, got %q", seen)
	}
}

func TestBusinessContextRejectsBlankParam(t *testing.T) {
	r := chi.NewRouter()
	called := false
	r.With(BusinessContext(nil)).Get("/businesses/{businessID}/brands", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/businesses/%20/brands", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatalf("handler should not run without a business id")
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "req-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}
