package localstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/posdesk/pkg/enums"
)

// IndexDef is a secondary lookup over one column. Index names match the
// column they cover.
type IndexDef struct {
	Name   string
	Column string
}

// CollectionDef declares a collection's primary key and secondary indexes.
type CollectionDef struct {
	Name    enums.Collection
	Key     string
	Indexes []IndexDef
}

// Index returns the named index definition.
func (d CollectionDef) Index(name string) (IndexDef, bool) {
	for _, idx := range d.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// Schema is the registry of every collection the store manages.
type Schema struct {
	defs   []CollectionDef
	byName map[enums.Collection]int
}

// NewSchema builds a registry; duplicate or unknown collection names are rejected.
func NewSchema(defs ...CollectionDef) (*Schema, error) {
	s := &Schema{byName: make(map[enums.Collection]int, len(defs))}
	for _, def := range defs {
		if !def.Name.IsValid() {
			return nil, fmt.Errorf("unknown collection %q", def.Name)
		}
		if def.Key == "" {
			return nil, fmt.Errorf("collection %q has no key", def.Name)
		}
		if _, dup := s.byName[def.Name]; dup {
			return nil, fmt.Errorf("collection %q declared twice", def.Name)
		}
		s.byName[def.Name] = len(s.defs)
		s.defs = append(s.defs, def)
	}
	return s, nil
}

// Lookup returns the definition for name.
func (s *Schema) Lookup(name enums.Collection) (CollectionDef, bool) {
	i, ok := s.byName[name]
	if !ok {
		return CollectionDef{}, false
	}
	return s.defs[i], true
}

// Collections returns the definitions in declaration order.
func (s *Schema) Collections() []CollectionDef {
	out := make([]CollectionDef, len(s.defs))
	copy(out, s.defs)
	return out
}

// Verify checks that every declared collection and indexed column exists in
// the migrated database.
func (s *Schema) Verify(ctx context.Context, conn *gorm.DB) error {
	migrator := conn.WithContext(ctx).Migrator()
	for _, def := range s.defs {
		table := string(def.Name)
		if !migrator.HasTable(table) {
			return fmt.Errorf("collection %q has no table", table)
		}
		if !migrator.HasColumn(table, def.Key) {
			return fmt.Errorf("collection %q missing key column %q", table, def.Key)
		}
		for _, idx := range def.Indexes {
			if !migrator.HasColumn(table, idx.Column) {
				return fmt.Errorf("collection %q missing indexed column %q", table, idx.Column)
			}
		}
	}
	return nil
}

func byColumn(columns ...string) []IndexDef {
	out := make([]IndexDef, 0, len(columns))
	for _, c := range columns {
		out = append(out, IndexDef{Name: c, Column: c})
	}
	return out
}

// DefaultSchema declares the POS collections created by the embedded migrations.
func DefaultSchema() *Schema {
	s, err := NewSchema(
		CollectionDef{Name: enums.CollectionProducts, Key: "id", Indexes: byColumn("store_id", "barcode", "category_id")},
		CollectionDef{Name: enums.CollectionCustomers, Key: "id", Indexes: byColumn("store_id")},
		CollectionDef{Name: enums.CollectionSales, Key: "id", Indexes: byColumn("store_id", "cashier_id")},
		CollectionDef{Name: enums.CollectionCategories, Key: "id", Indexes: byColumn("business_id")},
		CollectionDef{Name: enums.CollectionBrands, Key: "id", Indexes: byColumn("business_id")},
		CollectionDef{Name: enums.CollectionSuppliers, Key: "id", Indexes: byColumn("business_id")},
		CollectionDef{Name: enums.CollectionStores, Key: "id", Indexes: byColumn("business_id")},
		CollectionDef{Name: enums.CollectionSavedCarts, Key: "id", Indexes: byColumn("store_id", "cashier_id")},
		CollectionDef{Name: enums.CollectionBusinessSettings, Key: "business_id"},
		CollectionDef{Name: enums.CollectionStoreSettings, Key: "store_id"},
		CollectionDef{Name: enums.CollectionLanguages, Key: "id", Indexes: byColumn("code")},
		CollectionDef{Name: enums.CollectionCurrencies, Key: "id", Indexes: byColumn("code")},
		CollectionDef{Name: enums.CollectionCountries, Key: "id", Indexes: byColumn("code")},
		CollectionDef{Name: enums.CollectionSyncQueue, Key: "id", Indexes: byColumn("target_table")},
		CollectionDef{Name: enums.CollectionCacheMetadata, Key: "table_name"},
		CollectionDef{Name: enums.CollectionDeadLetters, Key: "id"},
	)
	if err != nil {
		panic(err)
	}
	return s
}
