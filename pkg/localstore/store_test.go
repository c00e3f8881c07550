package localstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/localstore/localstoretest"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

func TestInitConcurrentCallersShareOnePass(t *testing.T) {
	store := localstore.New(localstoretest.Config(t), logger.Nop())
	t.Cleanup(func() { _ = store.Close() })

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error { return store.Init(context.Background()) })
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(1), store.SchemaPasses())
	require.Equal(t, int64(5), store.MigrationsApplied())

	require.NoError(t, store.Init(context.Background()))
	require.Equal(t, int64(1), store.SchemaPasses())

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(20260502080000), version)
}

func TestCloseThenInitReopensWithoutLosingData(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(localstoretest.Config(t), logger.Nop())
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(ctx))

	products := localstore.MustCollection[models.Product](store, enums.CollectionProducts)
	require.NoError(t, products.Put(ctx, &models.Product{Base: models.Base{ID: "p1"}, StoreID: "S1", Name: "Cola"}))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, ok := products.Get(ctx, "p1")
	require.False(t, ok, "closed store serves misses")
	err := products.Put(ctx, &models.Product{Base: models.Base{ID: "p2"}, StoreID: "S1"})
	require.True(t, errors.IsCode(err, errors.CodeStorage))

	require.NoError(t, store.Init(ctx))
	require.Equal(t, int64(2), store.SchemaPasses())
	require.Equal(t, int64(5), store.MigrationsApplied(), "second pass is a no-op upgrade")

	got, ok := products.Get(ctx, "p1")
	require.True(t, ok)
	require.Equal(t, "Cola", got.Name)
}

func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	store := localstoretest.New(t)

	products := localstore.MustCollection[models.Product](store, enums.CollectionProducts)
	queue := localstore.MustCollection[models.SyncQueueItem](store, enums.CollectionSyncQueue)
	require.NoError(t, products.Put(ctx, &models.Product{Base: models.Base{ID: "p1"}, StoreID: "S1", Name: "Cola"}))
	require.NoError(t, queue.Put(ctx, &models.SyncQueueItem{ID: "q1", Operation: enums.SyncOperationCreate, Table: enums.CollectionSales, Data: []byte(`{}`)}))

	require.NoError(t, store.ClearAllData(ctx))
	require.Empty(t, products.GetAll(ctx))
	require.Empty(t, queue.GetAll(ctx))
}

func TestClearTableRejectsUnknownCollection(t *testing.T) {
	store := localstoretest.New(t)
	err := store.ClearTable(context.Background(), enums.Collection("orders"))
	require.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestWithTxRollsBackAcrossCollections(t *testing.T) {
	ctx := context.Background()
	store := localstoretest.New(t)
	products := localstore.MustCollection[models.Product](store, enums.CollectionProducts)
	customers := localstore.MustCollection[models.Customer](store, enums.CollectionCustomers)

	err := store.WithTx(ctx, func(ctx context.Context) error {
		if err := products.Put(ctx, &models.Product{Base: models.Base{ID: "p1"}, StoreID: "S1", Name: "Cola"}); err != nil {
			return err
		}
		if err := customers.Put(ctx, &models.Customer{Base: models.Base{ID: "c1"}, StoreID: "S1", Name: "Ada"}); err != nil {
			return err
		}
		return errors.New(errors.CodeConflict, "abort")
	})
	require.Error(t, err)
	require.Empty(t, products.GetAll(ctx))
	require.Empty(t, customers.GetAll(ctx))
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	_, err := localstore.NewSchema(
		localstore.CollectionDef{Name: enums.CollectionProducts, Key: "id"},
		localstore.CollectionDef{Name: enums.CollectionProducts, Key: "id"},
	)
	require.Error(t, err)

	_, err = localstore.NewSchema(localstore.CollectionDef{Name: "orders", Key: "id"})
	require.Error(t, err)

	_, err = localstore.NewSchema(localstore.CollectionDef{Name: enums.CollectionSales})
	require.Error(t, err)
}

func TestMustCollectionPanicsOnUndeclared(t *testing.T) {
	schema, err := localstore.NewSchema(localstore.CollectionDef{Name: enums.CollectionProducts, Key: "id"})
	require.NoError(t, err)
	store := localstore.New(localstoretest.Config(t), logger.Nop(), localstore.WithSchema(schema))

	require.Panics(t, func() { localstore.MustCollection[models.Sale](store, enums.CollectionSales) })
	products := localstore.MustCollection[models.Product](store, enums.CollectionProducts)
	require.Panics(t, func() { products.MustIndex("store_id") })
}
