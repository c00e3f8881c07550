package offline

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/remote"
)

// OwnedRecord is implemented by pointers to settings models, which are keyed
// by their owning business or store.
type OwnedRecord[T any] interface {
	*T
	RecordID() string
	SetRecordID(string)
}

type settingsCache[T any] interface {
	Collection() enums.Collection
	Get(ctx context.Context, ownerID string) (*T, bool)
	Cache(ctx context.Context, record *T) error
}

// Settings hooks a 1:1 settings collection.
type Settings[T any, P OwnedRecord[T]] struct {
	env   *env
	cache settingsCache[T]
}

func newSettings[T any, P OwnedRecord[T]](e *env, c settingsCache[T]) *Settings[T, P] {
	return &Settings[T, P]{env: e, cache: c}
}

// Collection returns the hooked collection.
func (s *Settings[T, P]) Collection() enums.Collection {
	return s.cache.Collection()
}

// Get fetches the settings of ownerID, falling back to the cache.
func (s *Settings[T, P]) Get(ctx context.Context, ownerID string) (QueryResult[*T], error) {
	if ownerID == "" {
		return QueryResult[*T]{}, errors.New(errors.CodeValidation, "owner id is required")
	}
	table := s.Collection()

	var fetchErr error
	if s.env.online() {
		var fetched T
		err := s.env.upstream.Get(ctx, remote.RecordPath(table, ownerID), nil, &fetched)
		if err == nil {
			if P(&fetched).RecordID() == "" {
				P(&fetched).SetRecordID(ownerID)
			}
			s.env.writeThrough(ctx, table, s.cache.Cache(ctx, &fetched))
			s.env.servedFromNetwork(table)
			return QueryResult[*T]{Data: &fetched, Source: enums.DataSourceNetwork}, nil
		}
		fetchErr = err
	} else {
		fetchErr = errOffline(table)
	}

	cached, ok := s.cache.Get(ctx, ownerID)
	if !ok {
		return QueryResult[*T]{Source: enums.DataSourceCache, FetchErr: fetchErr}, s.env.fallback(table, fetchErr)
	}
	s.env.servedFromCache(ctx, table, fetchErr)
	return QueryResult[*T]{Data: cached, Source: enums.DataSourceCache, FetchErr: fetchErr}, nil
}

// Save replaces the settings upstream when online; offline the record is
// cached and an update is queued.
func (s *Settings[T, P]) Save(ctx context.Context, record *T) (MutationResult[T], error) {
	if record == nil || P(record).RecordID() == "" {
		return MutationResult[T]{}, errors.New(errors.CodeValidation, "settings owner id is required")
	}
	table := s.Collection()
	ownerID := P(record).RecordID()

	if s.env.online() {
		var saved T
		if err := s.env.upstream.Put(ctx, remote.RecordPath(table, ownerID), record, uuid.NewString(), &saved); err != nil {
			return MutationResult[T]{}, err
		}
		if P(&saved).RecordID() == "" {
			saved = *record
		}
		s.env.writeThrough(ctx, table, s.cache.Cache(ctx, &saved))
		return MutationResult[T]{Record: &saved, Status: enums.MutationStatusSynced}, nil
	}

	var queued models.SyncQueueItem
	err := s.env.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.cache.Cache(ctx, record); err != nil {
			return err
		}
		item, err := s.env.queue.Enqueue(ctx, syncqueue.Entry{
			Operation: enums.SyncOperationUpdate,
			Table:     table,
			Data:      record,
		})
		queued = item
		return err
	})
	if err != nil {
		return MutationResult[T]{}, err
	}
	return MutationResult[T]{Record: record, Status: enums.MutationStatusPendingSync, QueueID: queued.ID}, nil
}
