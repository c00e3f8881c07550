package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/api/middleware"
	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/api/validators"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// BarcodeParam is the route parameter carrying a scanned barcode.
const BarcodeParam = "barcode"

// BarcodeLookup resolves a scanned barcode against the local product cache.
type BarcodeLookup interface {
	ProductByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, bool)
}

// ProductByBarcode answers scans from the cache only, so a scan never waits
// on the network.
func ProductByBarcode(lookup BarcodeLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		barcode := validators.NormalizeBarcode(chi.URLParam(r, BarcodeParam), 64)
		if barcode == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "barcode missing"))
			return
		}
		product, ok := lookup.ProductByBarcode(ctx, middleware.StoreIDFromContext(ctx), barcode)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no product with barcode "+barcode))
			return
		}
		responses.WriteQuery(w, product, enums.DataSourceCache, nil)
	}
}
