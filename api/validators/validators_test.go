package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
)

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyValidatesNestedSaleItems(t *testing.T) {
	var sale models.Sale
	err := DecodeJSONBody(jsonRequest(`{"cashier_id":"C1","payment_method":"cash","items":[{"product_id":"","quantity":0,"unit_price":"-1"}]}`), &sale)
	details := validationDetails(t, err)
	for _, field := range []string{"items[0].product_id", "items[0].quantity", "items[0].unit_price"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected %s in details, got %v", field, details)
		}
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingBodies(t *testing.T) {
	var customer models.Customer
	if err := DecodeJSONBody(jsonRequest(""), &customer); err == nil {
		t.Fatalf("expected error for empty body")
	}
	if err := DecodeJSONBody(jsonRequest(`{"name":"Ana"}{"name":"Bo"}`), &customer); err == nil {
		t.Fatalf("expected error for trailing object")
	}
	if err := DecodeJSONBody(jsonRequest(`{"name":"Ana","unknown":1}`), &customer); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestDecodeJSONBodyAcceptsValidCustomer(t *testing.T) {
	var customer models.Customer
	if err := DecodeJSONBody(jsonRequest(`{"name":"Ana","email":"ana@example.com"}`), &customer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer.Name != "Ana" {
		t.Fatalf("expected decoded name, got %q", customer.Name)
	}
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	var customer models.Customer
	big := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	if err := DecodeJSONBody(jsonRequest(big), &customer); err == nil {
		t.Fatalf("expected error for oversized body")
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=900&force=yes&table=sales", nil)
	if _, err := ParseQueryInt(req, "limit", 50, 1, 500); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := ParseQueryBool(req, "force", false); err == nil {
		t.Fatalf("expected boolean parse error")
	}
	table, err := ParseQueryCollection(req, "table")
	if err != nil || table == nil || *table != enums.CollectionSales {
		t.Fatalf("expected sales table, got %v, %v", table, err)
	}

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	if table, err := ParseQueryCollection(empty, "table"); err != nil || table != nil {
		t.Fatalf("expected no filter, got %v, %v", table, err)
	}
	if force, err := ParseQueryBool(empty, "force", false); err != nil || force {
		t.Fatalf("expected default false, got %v, %v", force, err)
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("  café  ", 4); got != "caf" {
		t.Fatalf("expected truncation before multi-byte rune, got %q", got)
	}
	if got := NormalizeBarcode(" 750-1 234 ", 64); got != "7501234" {
		t.Fatalf("expected normalized barcode, got %q", got)
	}
}
