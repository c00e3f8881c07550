package localstore

import (
	"context"
	stdErrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/posdesk/pkg/db"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
)

const putBatchSize = 100

// Collection is a typed view over one declared collection.
type Collection[T any] struct {
	store *Store
	def   CollectionDef
}

// Index is a typed handle to a secondary index of a Collection[T].
type Index[T any] struct {
	collection enums.Collection
	def        IndexDef
}

// Name returns the index name.
func (i Index[T]) Name() string {
	return i.def.Name
}

// MustCollection binds T to a declared collection. It panics when the
// collection is not in the store's schema.
func MustCollection[T any](store *Store, name enums.Collection) *Collection[T] {
	def, ok := store.Schema().Lookup(name)
	if !ok {
		panic(fmt.Sprintf("localstore: collection %q is not declared", name))
	}
	return &Collection[T]{store: store, def: def}
}

// MustIndex returns a handle to a declared index. It panics when the index is
// not declared on the collection.
func (c *Collection[T]) MustIndex(name string) Index[T] {
	def, ok := c.def.Index(name)
	if !ok {
		panic(fmt.Sprintf("localstore: index %q is not declared on %q", name, c.def.Name))
	}
	return Index[T]{collection: c.def.Name, def: def}
}

// Name returns the collection name.
func (c *Collection[T]) Name() enums.Collection {
	return c.def.Name
}

// Store returns the owning store.
func (c *Collection[T]) Store() *Store {
	return c.store
}

func (c *Collection[T]) table(ctx context.Context) (*gorm.DB, error) {
	conn, err := c.store.conn(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Table(string(c.def.Name)), nil
}

func (c *Collection[T]) keyEq(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: c.def.Key}, Value: key}
}

func (c *Collection[T]) storageErr(op string, err error) error {
	if db.IsUniqueViolation(err, "") {
		return errors.Wrap(errors.CodeConflict, err, fmt.Sprintf("%s %s", op, c.def.Name))
	}
	return errors.Wrap(errors.CodeStorage, err, fmt.Sprintf("%s %s", op, c.def.Name))
}

// Get returns the record stored under key. Storage failures are logged and
// reported as a miss.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, bool) {
	q, err := c.table(ctx)
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "get", err)
		return nil, false
	}
	var record T
	err = q.Where(c.keyEq(key)).Take(&record).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "get", err)
		return nil, false
	}
	return &record, true
}

// GetAll returns every record in the collection in no particular order.
func (c *Collection[T]) GetAll(ctx context.Context) []T {
	q, err := c.table(ctx)
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "get_all", err)
		return []T{}
	}
	var records []T
	if err := q.Find(&records).Error; err != nil {
		c.store.warnRead(ctx, c.def.Name, "get_all", err)
		return []T{}
	}
	if records == nil {
		records = []T{}
	}
	return records
}

// GetByIndex returns records whose indexed column equals value.
func (c *Collection[T]) GetByIndex(ctx context.Context, idx Index[T], value any) []T {
	q, err := c.table(ctx)
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "get_by_index", err)
		return []T{}
	}
	var records []T
	err = q.Where(clause.Eq{Column: clause.Column{Name: idx.def.Column}, Value: value}).Find(&records).Error
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "get_by_index", err)
		return []T{}
	}
	if records == nil {
		records = []T{}
	}
	return records
}

// Count returns the number of records, or zero when the read fails.
func (c *Collection[T]) Count(ctx context.Context) int64 {
	q, err := c.table(ctx)
	if err != nil {
		c.store.warnRead(ctx, c.def.Name, "count", err)
		return 0
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		c.store.warnRead(ctx, c.def.Name, "count", err)
		return 0
	}
	return n
}

// Put upserts record by primary key.
func (c *Collection[T]) Put(ctx context.Context, record *T) error {
	if record == nil {
		return errors.New(errors.CodeValidation, "record is required")
	}
	q, err := c.table(ctx)
	if err != nil {
		return c.storageErr("put", err)
	}
	if err := q.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
		return c.storageErr("put", err)
	}
	return nil
}

// PutMany upserts records in a single transaction.
func (c *Collection[T]) PutMany(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	return c.store.WithTx(ctx, func(ctx context.Context) error {
		return c.insert(ctx, records)
	})
}

func (c *Collection[T]) insert(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	q, err := c.table(ctx)
	if err != nil {
		return c.storageErr("put_many", err)
	}
	if err := q.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&records, putBatchSize).Error; err != nil {
		return c.storageErr("put_many", err)
	}
	return nil
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	q, err := c.table(ctx)
	if err != nil {
		return c.storageErr("delete", err)
	}
	if err := q.Where(c.keyEq(key)).Delete(new(T)).Error; err != nil {
		return c.storageErr("delete", err)
	}
	return nil
}

// DeleteByIndex removes every record whose indexed column equals value.
func (c *Collection[T]) DeleteByIndex(ctx context.Context, idx Index[T], value any) (int64, error) {
	q, err := c.table(ctx)
	if err != nil {
		return 0, c.storageErr("delete_by_index", err)
	}
	res := q.Where(clause.Eq{Column: clause.Column{Name: idx.def.Column}, Value: value}).Delete(new(T))
	if res.Error != nil {
		return 0, c.storageErr("delete_by_index", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteWhere removes every record matching all conditions. At least one
// condition is required.
func (c *Collection[T]) DeleteWhere(ctx context.Context, conds ...clause.Expression) (int64, error) {
	if len(conds) == 0 {
		return 0, errors.New(errors.CodeValidation, "delete_where requires a condition")
	}
	q, err := c.table(ctx)
	if err != nil {
		return 0, c.storageErr("delete_where", err)
	}
	res := q.Clauses(clause.Where{Exprs: conds}).Delete(new(T))
	if res.Error != nil {
		return 0, c.storageErr("delete_where", res.Error)
	}
	return res.RowsAffected, nil
}

// Clear removes every record in the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.store.ClearTable(ctx, c.def.Name)
}

// ReplaceWhere deletes every record in the idx=value scope and inserts records,
// in one transaction. An empty records slice still clears the scope.
func (c *Collection[T]) ReplaceWhere(ctx context.Context, idx Index[T], value any, records []T) error {
	return c.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.DeleteByIndex(ctx, idx, value); err != nil {
			return err
		}
		return c.insert(ctx, records)
	})
}

// ReplaceAll clears the collection and inserts records, in one transaction.
func (c *Collection[T]) ReplaceAll(ctx context.Context, records []T) error {
	return c.store.WithTx(ctx, func(ctx context.Context) error {
		if err := c.Clear(ctx); err != nil {
			return err
		}
		return c.insert(ctx, records)
	})
}

// Update sets columns on the record under key and reports whether it existed.
func (c *Collection[T]) Update(ctx context.Context, key string, columns map[string]any) (bool, error) {
	q, err := c.table(ctx)
	if err != nil {
		return false, c.storageErr("update", err)
	}
	res := q.Where(c.keyEq(key)).Updates(columns)
	if res.Error != nil {
		return false, c.storageErr("update", res.Error)
	}
	return res.RowsAffected > 0, nil
}
