package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/api/responses"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// URL parameters carrying the tenant scope.
const (
	StoreIDParam    = "storeID"
	BusinessIDParam = "businessID"
)

// StoreContext lifts {storeID} from the route into the request context and
// the log fields.
func StoreContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storeID := strings.TrimSpace(chi.URLParam(r, StoreIDParam))
			if storeID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "store id missing"))
				return
			}
			ctx := WithStoreID(r.Context(), storeID)
			if logg != nil {
				ctx = logg.WithStoreID(ctx, storeID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BusinessContext lifts {businessID} from the route into the request context.
func BusinessContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			businessID := strings.TrimSpace(chi.URLParam(r, BusinessIDParam))
			if businessID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "business id missing"))
				return
			}
			ctx := WithBusinessID(r.Context(), businessID)
			if logg != nil {
				ctx = logg.WithBusinessID(ctx, businessID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
