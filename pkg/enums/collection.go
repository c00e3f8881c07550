package enums

import "fmt"

// Collection names a local record collection. The value doubles as the SQL
// table name and as the upstream REST resource segment.
type Collection string

const (
	CollectionProducts         Collection = "products"
	CollectionCustomers        Collection = "customers"
	CollectionSales            Collection = "sales"
	CollectionCategories       Collection = "categories"
	CollectionBrands           Collection = "brands"
	CollectionSuppliers        Collection = "suppliers"
	CollectionStores           Collection = "stores"
	CollectionSavedCarts       Collection = "saved_carts"
	CollectionBusinessSettings Collection = "business_settings"
	CollectionStoreSettings    Collection = "store_settings"
	CollectionLanguages        Collection = "languages"
	CollectionCurrencies       Collection = "currencies"
	CollectionCountries        Collection = "countries"
	CollectionSyncQueue        Collection = "sync_queue"
	CollectionCacheMetadata    Collection = "cache_metadata"
	CollectionDeadLetters      Collection = "sync_dead_letters"
)

var validCollections = []Collection{
	CollectionProducts,
	CollectionCustomers,
	CollectionSales,
	CollectionCategories,
	CollectionBrands,
	CollectionSuppliers,
	CollectionStores,
	CollectionSavedCarts,
	CollectionBusinessSettings,
	CollectionStoreSettings,
	CollectionLanguages,
	CollectionCurrencies,
	CollectionCountries,
	CollectionSyncQueue,
	CollectionCacheMetadata,
	CollectionDeadLetters,
}

// syncable collections accept queued offline mutations.
var syncableCollections = []Collection{
	CollectionProducts,
	CollectionCustomers,
	CollectionSales,
	CollectionCategories,
	CollectionBrands,
	CollectionSuppliers,
	CollectionStores,
	CollectionSavedCarts,
	CollectionBusinessSettings,
	CollectionStoreSettings,
}

// String implements fmt.Stringer.
func (c Collection) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Collection.
func (c Collection) IsValid() bool {
	for _, candidate := range validCollections {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsSyncable reports whether offline mutations against c may be queued.
func (c Collection) IsSyncable() bool {
	for _, candidate := range syncableCollections {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsSettings reports whether records in c are keyed by their owner id.
func (c Collection) IsSettings() bool {
	return c == CollectionBusinessSettings || c == CollectionStoreSettings
}

// ParseCollection converts raw input into a Collection.
func ParseCollection(value string) (Collection, error) {
	for _, candidate := range validCollections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection %q", value)
}
