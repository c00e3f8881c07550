package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/api/middleware"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/types"
)

type stubCustomerHooks struct {
	records map[string]models.Customer
	created *models.Customer
	updated string
	deleted string
	pending bool
	listErr error
}

func (s *stubCustomerHooks) Collection() enums.Collection { return enums.CollectionCustomers }

func (s *stubCustomerHooks) List(_ context.Context, scopeID string) (offline.QueryResult[[]models.Customer], error) {
	if s.listErr != nil {
		return offline.QueryResult[[]models.Customer]{}, s.listErr
	}
	out := []models.Customer{}
	for _, c := range s.records {
		if c.StoreID == scopeID {
			out = append(out, c)
		}
	}
	return offline.QueryResult[[]models.Customer]{Data: out, Source: enums.DataSourceNetwork}, nil
}

func (s *stubCustomerHooks) Get(_ context.Context, id string) (offline.QueryResult[*models.Customer], error) {
	c, ok := s.records[id]
	if !ok {
		return offline.QueryResult[*models.Customer]{}, pkgerrors.New(pkgerrors.CodeNotFound, "missing")
	}
	return offline.QueryResult[*models.Customer]{Data: &c, Source: enums.DataSourceCache}, nil
}

func (s *stubCustomerHooks) status() enums.MutationStatus {
	if s.pending {
		return enums.MutationStatusPendingSync
	}
	return enums.MutationStatusSynced
}

func (s *stubCustomerHooks) Create(_ context.Context, record *models.Customer) (offline.MutationResult[models.Customer], error) {
	s.created = record
	return offline.MutationResult[models.Customer]{Record: record, Status: s.status(), QueueID: "q-1"}, nil
}

func (s *stubCustomerHooks) Update(_ context.Context, id string, record *models.Customer) (offline.MutationResult[models.Customer], error) {
	s.updated = id
	return offline.MutationResult[models.Customer]{Record: record, Status: s.status()}, nil
}

func (s *stubCustomerHooks) Delete(_ context.Context, id string) (offline.MutationResult[models.Customer], error) {
	s.deleted = id
	return offline.MutationResult[models.Customer]{Status: s.status()}, nil
}

func customerEntity(hooks *stubCustomerHooks) *Entity[models.Customer] {
	return NewStoreEntity[models.Customer](hooks, func(c *models.Customer) *string { return &c.StoreID }, logger.Nop())
}

func serve(handler http.HandlerFunc, method, target, body, storeID, id string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	routeCtx := chi.NewRouteContext()
	if id != "" {
		routeCtx.URLParams.Add(IDParam, id)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = middleware.WithStoreID(ctx, storeID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestEntityCreateForcesRouteScope(t *testing.T) {
	hooks := &stubCustomerHooks{}
	rec := serve(customerEntity(hooks).Create(), http.MethodPost, "/customers", `{"name":"Ana","store_id":"OTHER"}`, "S1", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if hooks.created == nil || hooks.created.StoreID != "S1" {
		t.Fatalf("expected store scope from route, got %+v", hooks.created)
	}
}

func TestEntityCreatePendingReturnsAccepted(t *testing.T) {
	hooks := &stubCustomerHooks{pending: true}
	rec := serve(customerEntity(hooks).Create(), http.MethodPost, "/customers", `{"name":"Ana"}`, "S1", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rec.Code)
	}
	var body types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Meta == nil || body.Meta.QueueID != "q-1" {
		t.Fatalf("expected queue id in meta, got %+v", body.Meta)
	}
}

func TestEntityCreateRejectsInvalidBody(t *testing.T) {
	hooks := &stubCustomerHooks{}
	cases := map[string]string{
		"missing name":  `{"email":"ana@example.com"}`,
		"bad email":     `{"name":"Ana","email":"nope"}`,
		"unknown field": `{"name":"Ana","shoe_size":9}`,
	}
	for name, body := range cases {
		rec := serve(customerEntity(hooks).Create(), http.MethodPost, "/customers", body, "S1", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, rec.Code)
		}
	}
	if hooks.created != nil {
		t.Fatalf("invalid bodies must not reach the hooks")
	}
}

func TestEntityGetHidesOtherScopes(t *testing.T) {
	hooks := &stubCustomerHooks{records: map[string]models.Customer{
		"c-1": {Base: models.Base{ID: "c-1"}, StoreID: "S2", Name: "Bo"},
	}}
	rec := serve(customerEntity(hooks).Get(), http.MethodGet, "/customers/c-1", "", "S1", "c-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another store's record, got %d", rec.Code)
	}
	rec = serve(customerEntity(hooks).Get(), http.MethodGet, "/customers/c-1", "", "S2", "c-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own record, got %d", rec.Code)
	}
}

func TestEntityListFilter(t *testing.T) {
	hooks := &stubCustomerHooks{records: map[string]models.Customer{
		"c-1": {Base: models.Base{ID: "c-1"}, StoreID: "S1", Name: "Ana"},
		"c-2": {Base: models.Base{ID: "c-2"}, StoreID: "S1", Name: "Bo"},
	}}
	entity := customerEntity(hooks).WithFilter("name", func(c *models.Customer, v string) bool { return c.Name == v })
	rec := serve(entity.List(), http.MethodGet, "/customers?name=Bo", "", "S1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body struct {
		Data []models.Customer `json:"data"`
		Meta types.Meta        `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "c-2" {
		t.Fatalf("unexpected filtered list %+v", body.Data)
	}
	if body.Meta.Source != "network" {
		t.Fatalf("expected network source, got %q", body.Meta.Source)
	}
}

func TestEntityListPropagatesOffline(t *testing.T) {
	hooks := &stubCustomerHooks{listErr: pkgerrors.New(pkgerrors.CodeOffline, "customers: offline")}
	rec := serve(customerEntity(hooks).List(), http.MethodGet, "/customers", "", "S1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestEntityUpdateAndDelete(t *testing.T) {
	hooks := &stubCustomerHooks{records: map[string]models.Customer{
		"c-9": {Base: models.Base{ID: "c-9"}, StoreID: "S1", Name: "Ana"},
	}}
	rec := serve(customerEntity(hooks).Update(), http.MethodPut, "/customers/c-9", `{"name":"Ana"}`, "S1", "c-9")
	if rec.Code != http.StatusOK || hooks.updated != "c-9" {
		t.Fatalf("update: got %d id=%q", rec.Code, hooks.updated)
	}
	rec = serve(customerEntity(hooks).Delete(), http.MethodDelete, "/customers/c-9", "", "S1", "c-9")
	if rec.Code != http.StatusOK || hooks.deleted != "c-9" {
		t.Fatalf("delete: got %d id=%q", rec.Code, hooks.deleted)
	}
	rec = serve(customerEntity(hooks).Delete(), http.MethodDelete, "/customers/", "", "S1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete without id: expected 400 got %d", rec.Code)
	}
}

func TestEntityMutationsRejectOtherScopes(t *testing.T) {
	hooks := &stubCustomerHooks{records: map[string]models.Customer{
		"c-b": {Base: models.Base{ID: "c-b"}, StoreID: "B", Name: "Bo"},
	}}
	entity := customerEntity(hooks)

	rec := serve(entity.Update(), http.MethodPut, "/customers/c-b", `{"name":"Moved"}`, "A", "c-b")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update across stores: expected 404 got %d", rec.Code)
	}
	if hooks.updated != "" {
		t.Fatalf("record of another store must not be updated")
	}

	rec = serve(entity.Delete(), http.MethodDelete, "/customers/c-b", "", "A", "c-b")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete across stores: expected 404 got %d", rec.Code)
	}
	if hooks.deleted != "" {
		t.Fatalf("record of another store must not be deleted")
	}

	rec = serve(entity.Delete(), http.MethodDelete, "/customers/nope", "", "A", "nope")
	if rec.Code != http.StatusNotFound || hooks.deleted != "" {
		t.Fatalf("unknown record: expected 404 got %d", rec.Code)
	}
}
