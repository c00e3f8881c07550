package offline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/remote"
)

// Record is implemented by pointers to entity models.
type Record[T any] interface {
	*T
	RecordID() string
	SetRecordID(string)
	Temp() bool
	SetTemp(bool)
}

type scopedCache[T any] interface {
	Collection() enums.Collection
	ByScope(ctx context.Context, scopeID string) []T
	Get(ctx context.Context, id string) (*T, bool)
	Put(ctx context.Context, record *T) error
	Delete(ctx context.Context, id string) error
	Cache(ctx context.Context, records []T, scopeID string) error
}

// Entity hooks one scoped collection (store or business owned).
type Entity[T any, P Record[T]] struct {
	env         *env
	cache       scopedCache[T]
	scopeColumn string
}

func newEntity[T any, P Record[T]](e *env, c scopedCache[T], scopeColumn string) *Entity[T, P] {
	return &Entity[T, P]{env: e, cache: c, scopeColumn: scopeColumn}
}

// Collection returns the hooked collection.
func (x *Entity[T, P]) Collection() enums.Collection {
	return x.cache.Collection()
}

// List fetches every record of scopeID from upstream and writes it through
// to the cache. When the fetch fails the cached scope is returned instead;
// only an empty cache turns the failure into an error.
func (x *Entity[T, P]) List(ctx context.Context, scopeID string) (QueryResult[[]T], error) {
	if scopeID == "" {
		return QueryResult[[]T]{}, errors.New(errors.CodeValidation, x.scopeColumn+" is required")
	}
	table := x.Collection()

	var fetchErr error
	if x.env.online() {
		var fetched []T
		err := x.env.upstream.Get(ctx, remote.CollectionPath(table), remote.ScopeQuery(x.scopeColumn, scopeID), &fetched)
		if err == nil {
			records := x.mergePending(ctx, scopeID, fetched)
			x.env.writeThrough(ctx, table, x.cache.Cache(ctx, records, scopeID))
			x.env.servedFromNetwork(table)
			return QueryResult[[]T]{Data: records, Source: enums.DataSourceNetwork}, nil
		}
		fetchErr = err
	} else {
		fetchErr = errOffline(table)
	}

	cached := x.cache.ByScope(ctx, scopeID)
	if len(cached) == 0 {
		return QueryResult[[]T]{Data: []T{}, Source: enums.DataSourceCache, FetchErr: fetchErr}, x.env.fallback(table, fetchErr)
	}
	x.env.servedFromCache(ctx, table, fetchErr)
	return QueryResult[[]T]{Data: cached, Source: enums.DataSourceCache, FetchErr: fetchErr}, nil
}

// mergePending overlays local records that still have queued mutations on a
// fresh upstream listing, so a write-through never hides unsynced work.
func (x *Entity[T, P]) mergePending(ctx context.Context, scopeID string, fetched []T) []T {
	table := x.Collection()
	pending := x.env.queue.ListPending(ctx, &table)
	if fetched == nil {
		fetched = []T{}
	}
	if len(pending) == 0 {
		return fetched
	}

	lastOp := make(map[string]enums.SyncOperation, len(pending))
	order := make([]string, 0, len(pending))
	for _, item := range pending {
		id := x.env.queue.RecordID(item)
		if id == "" {
			continue
		}
		if _, ok := lastOp[id]; !ok {
			order = append(order, id)
		}
		lastOp[id] = item.Operation
	}

	local := make(map[string]T)
	for _, rec := range x.cache.ByScope(ctx, scopeID) {
		local[P(&rec).RecordID()] = rec
	}

	merged := make([]T, 0, len(fetched)+len(order))
	seen := make(map[string]bool, len(fetched))
	for _, rec := range fetched {
		id := P(&rec).RecordID()
		seen[id] = true
		op, queued := lastOp[id]
		switch {
		case !queued:
			merged = append(merged, rec)
		case op == enums.SyncOperationDelete:
			// deleted locally, waiting for replay
		default:
			if l, ok := local[id]; ok {
				merged = append(merged, l)
			} else {
				merged = append(merged, rec)
			}
		}
	}
	for _, id := range order {
		if seen[id] || lastOp[id] == enums.SyncOperationDelete {
			continue
		}
		if l, ok := local[id]; ok {
			merged = append(merged, l)
		}
	}
	return merged
}

func (x *Entity[T, P]) hasPending(ctx context.Context, id string) bool {
	table := x.Collection()
	for _, item := range x.env.queue.ListPending(ctx, &table) {
		if x.env.queue.RecordID(item) == id {
			return true
		}
	}
	return false
}

// Get fetches one record, falling back to the cache. Temp records only
// exist locally and never hit the network.
func (x *Entity[T, P]) Get(ctx context.Context, id string) (QueryResult[*T], error) {
	if id == "" {
		return QueryResult[*T]{}, errors.New(errors.CodeValidation, "id is required")
	}
	table := x.Collection()

	var fetchErr error
	switch {
	case IsTempID(id):
		fetchErr = errors.New(errors.CodeNotFound, fmt.Sprintf("%s %s has not been synced", table, id))
	case x.env.online():
		var fetched T
		err := x.env.upstream.Get(ctx, remote.RecordPath(table, id), nil, &fetched)
		if err == nil {
			if x.hasPending(ctx, id) {
				if local, ok := x.cache.Get(ctx, id); ok {
					x.env.servedFromCache(ctx, table, nil)
					return QueryResult[*T]{Data: local, Source: enums.DataSourceCache}, nil
				}
			}
			x.env.writeThrough(ctx, table, x.cache.Put(ctx, &fetched))
			x.env.servedFromNetwork(table)
			return QueryResult[*T]{Data: &fetched, Source: enums.DataSourceNetwork}, nil
		}
		fetchErr = err
	default:
		fetchErr = errOffline(table)
	}

	cached, ok := x.cache.Get(ctx, id)
	if !ok {
		return QueryResult[*T]{Source: enums.DataSourceCache, FetchErr: fetchErr}, x.env.fallback(table, fetchErr)
	}
	x.env.servedFromCache(ctx, table, fetchErr)
	return QueryResult[*T]{Data: cached, Source: enums.DataSourceCache, FetchErr: fetchErr}, nil
}

// Create posts record upstream when online. Offline it becomes a temp
// record in the cache plus a queued create, written in one transaction.
// Upstream failures while online are returned, never queued.
func (x *Entity[T, P]) Create(ctx context.Context, record *T) (MutationResult[T], error) {
	if record == nil {
		return MutationResult[T]{}, errors.New(errors.CodeValidation, "record is required")
	}
	table := x.Collection()

	if x.env.online() {
		var created T
		if err := x.env.upstream.Post(ctx, remote.CollectionPath(table), record, uuid.NewString(), &created); err != nil {
			return MutationResult[T]{}, err
		}
		if P(&created).RecordID() == "" {
			created = *record
		}
		x.env.writeThrough(ctx, table, x.cache.Put(ctx, &created))
		return MutationResult[T]{Record: &created, Status: enums.MutationStatusSynced}, nil
	}

	p := P(record)
	p.SetRecordID(NewTempID(x.env.now()))
	p.SetTemp(true)
	return x.queueLocal(ctx, enums.SyncOperationCreate, record)
}

// Update replaces record id upstream when online. Offline, and for records
// that still have queued mutations, the change is cached and queued behind
// them so replay applies it last.
func (x *Entity[T, P]) Update(ctx context.Context, id string, record *T) (MutationResult[T], error) {
	if id == "" || record == nil {
		return MutationResult[T]{}, errors.New(errors.CodeValidation, "id and record are required")
	}
	table := x.Collection()
	p := P(record)
	p.SetRecordID(id)

	if x.env.online() && !IsTempID(id) && !x.hasPending(ctx, id) {
		var updated T
		if err := x.env.upstream.Put(ctx, remote.RecordPath(table, id), record, uuid.NewString(), &updated); err != nil {
			return MutationResult[T]{}, err
		}
		if P(&updated).RecordID() == "" {
			updated = *record
		}
		x.env.writeThrough(ctx, table, x.cache.Put(ctx, &updated))
		return MutationResult[T]{Record: &updated, Status: enums.MutationStatusSynced}, nil
	}

	if existing, ok := x.cache.Get(ctx, id); ok && P(existing).Temp() {
		p.SetTemp(true)
	}
	return x.queueLocal(ctx, enums.SyncOperationUpdate, record)
}

// Delete removes id upstream when online. Deleting a record that never
// reached upstream cancels its queued mutations instead of queueing a delete.
// A record with queued mutations gets a queued delete behind them.
func (x *Entity[T, P]) Delete(ctx context.Context, id string) (MutationResult[T], error) {
	if id == "" {
		return MutationResult[T]{}, errors.New(errors.CodeValidation, "id is required")
	}
	table := x.Collection()

	if IsTempID(id) {
		err := x.env.store.WithTx(ctx, func(ctx context.Context) error {
			if _, err := x.env.queue.DropForRecord(ctx, table, id); err != nil {
				return err
			}
			return x.cache.Delete(ctx, id)
		})
		if err != nil {
			return MutationResult[T]{}, err
		}
		return MutationResult[T]{Status: enums.MutationStatusSynced}, nil
	}

	if x.env.online() && !x.hasPending(ctx, id) {
		if err := x.env.upstream.Delete(ctx, remote.RecordPath(table, id), uuid.NewString()); err != nil {
			return MutationResult[T]{}, err
		}
		x.env.writeThrough(ctx, table, x.cache.Delete(ctx, id))
		return MutationResult[T]{Status: enums.MutationStatusSynced}, nil
	}

	var queued models.SyncQueueItem
	err := x.env.store.WithTx(ctx, func(ctx context.Context) error {
		if err := x.cache.Delete(ctx, id); err != nil {
			return err
		}
		item, err := x.env.queue.Enqueue(ctx, syncqueue.Entry{
			Operation: enums.SyncOperationDelete,
			Table:     table,
			Data:      map[string]any{"id": id},
		})
		queued = item
		return err
	})
	if err != nil {
		return MutationResult[T]{}, err
	}
	return MutationResult[T]{Status: enums.MutationStatusPendingSync, QueueID: queued.ID}, nil
}

func (x *Entity[T, P]) queueLocal(ctx context.Context, op enums.SyncOperation, record *T) (MutationResult[T], error) {
	var queued models.SyncQueueItem
	err := x.env.store.WithTx(ctx, func(ctx context.Context) error {
		if err := x.cache.Put(ctx, record); err != nil {
			return err
		}
		item, err := x.env.queue.Enqueue(ctx, syncqueue.Entry{Operation: op, Table: x.Collection(), Data: record})
		queued = item
		return err
	})
	if err != nil {
		return MutationResult[T]{}, err
	}
	return MutationResult[T]{Record: record, Status: enums.MutationStatusPendingSync, QueueID: queued.ID}, nil
}
