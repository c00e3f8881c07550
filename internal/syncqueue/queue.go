package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

const maxErrorLen = 1024

// Entry describes a mutation to remember until it can be replayed upstream.
type Entry struct {
	Operation enums.SyncOperation
	Table     enums.Collection
	Data      any
}

// Queue is the durable journal of offline mutations. It only records retry
// bookkeeping; backoff and give-up policy belong to the replay driver.
type Queue struct {
	store   *localstore.Store
	items   *localstore.Collection[models.SyncQueueItem]
	byTable localstore.Index[models.SyncQueueItem]
	dead    *localstore.Collection[models.DeadLetter]
	logg    *logger.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator replaces the time-ordered uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

func New(store *localstore.Store, logg *logger.Logger, opts ...Option) *Queue {
	if logg == nil {
		logg = logger.Nop()
	}
	items := localstore.MustCollection[models.SyncQueueItem](store, enums.CollectionSyncQueue)
	q := &Queue{
		store:   store,
		items:   items,
		byTable: items.MustIndex("target_table"),
		dead:    localstore.MustCollection[models.DeadLetter](store, enums.CollectionDeadLetters),
		logg:    logg,
		now:     time.Now,
		newID:   newOrderedID,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue persists a new pending item with a fresh id, the current timestamp
// and zeroed retry bookkeeping.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) (models.SyncQueueItem, error) {
	if !entry.Operation.IsValid() {
		return models.SyncQueueItem{}, errors.New(errors.CodeValidation, fmt.Sprintf("invalid sync operation %q", entry.Operation))
	}
	if !entry.Table.IsSyncable() {
		return models.SyncQueueItem{}, errors.New(errors.CodeValidation, fmt.Sprintf("collection %q does not accept queued mutations", entry.Table))
	}
	data, err := encodeData(entry.Data)
	if err != nil {
		return models.SyncQueueItem{}, err
	}

	item := models.SyncQueueItem{
		ID:         q.newID(),
		Operation:  entry.Operation,
		Table:      entry.Table,
		Data:       data,
		Timestamp:  q.now().UnixMilli(),
		RetryCount: 0,
		LastRetry:  0,
	}
	if err := q.items.Put(ctx, &item); err != nil {
		return models.SyncQueueItem{}, err
	}

	q.logg.Info(q.logg.WithFields(ctx, map[string]any{
		"queue_id":  item.ID,
		"table":     item.Table,
		"operation": item.Operation,
	}), "offline mutation queued")
	return item, nil
}

func encodeData(data any) ([]byte, error) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return nil, errors.New(errors.CodeValidation, "queued mutation requires data")
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "encode queued mutation")
		}
		raw = encoded
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, errors.New(errors.CodeValidation, "queued mutation data must be a JSON object")
	}
	return raw, nil
}

// ListPending returns every pending item, or only those targeting table when
// it is non-nil. Items come back oldest first.
func (q *Queue) ListPending(ctx context.Context, table *enums.Collection) []models.SyncQueueItem {
	var items []models.SyncQueueItem
	if table != nil {
		items = q.items.GetByIndex(ctx, q.byTable, string(*table))
	} else {
		items = q.items.GetAll(ctx)
	}
	sortOldestFirst(items)
	return items
}

func sortOldestFirst(items []models.SyncQueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp < items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
}

// Get returns a single pending item.
func (q *Queue) Get(ctx context.Context, id string) (*models.SyncQueueItem, bool) {
	return q.items.Get(ctx, id)
}

// Count returns the number of pending items.
func (q *Queue) Count(ctx context.Context) int64 {
	return q.items.Count(ctx)
}

// Remove deletes an item after it was replayed successfully.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.items.Delete(ctx, id)
}

// RecordRetry stores the new retry count and stamps last_retry with now.
func (q *Queue) RecordRetry(ctx context.Context, id string, retryCount int, cause error) error {
	if retryCount < 0 {
		return errors.New(errors.CodeValidation, "retry count must not be negative")
	}
	columns := map[string]any{
		"retry_count": retryCount,
		"last_retry":  q.now().UnixMilli(),
	}
	if cause != nil {
		columns["last_error"] = truncate(cause.Error())
	}
	found, err := q.items.Update(ctx, id, columns)
	if err != nil {
		return err
	}
	if !found {
		return errors.New(errors.CodeNotFound, fmt.Sprintf("sync queue item %q not found", id))
	}
	return nil
}

// RecordID returns the id of the record an item targets, read from its
// collection's key field in the payload.
func (q *Queue) RecordID(item models.SyncQueueItem) string {
	def, ok := q.store.Schema().Lookup(item.Table)
	if !ok {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(item.Data, &data); err != nil {
		return ""
	}
	id, _ := data[def.Key].(string)
	return id
}

// DropForRecord removes every pending item targeting recordID in table and
// returns how many were dropped. Used when a never-synced record is deleted.
func (q *Queue) DropForRecord(ctx context.Context, table enums.Collection, recordID string) (int, error) {
	dropped := 0
	err := q.store.WithTx(ctx, func(ctx context.Context) error {
		for _, item := range q.ListPending(ctx, &table) {
			if q.RecordID(item) != recordID {
				continue
			}
			if err := q.items.Delete(ctx, item.ID); err != nil {
				return err
			}
			dropped++
		}
		return nil
	})
	return dropped, err
}

// RewriteRecordID replaces every occurrence of oldID in pending payloads with
// newID. After a temp record is acknowledged upstream, later items that point
// at it (its own updates, sales referencing a temp customer) carry the server id.
func (q *Queue) RewriteRecordID(ctx context.Context, oldID, newID string) (int, error) {
	if oldID == "" || newID == "" || oldID == newID {
		return 0, nil
	}
	rewritten := 0
	err := q.store.WithTx(ctx, func(ctx context.Context) error {
		for _, item := range q.ListPending(ctx, nil) {
			var data any
			if err := json.Unmarshal(item.Data, &data); err != nil {
				continue
			}
			patched, changed := replaceString(data, oldID, newID)
			if !changed {
				continue
			}
			raw, err := json.Marshal(patched)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "encode rewritten payload")
			}
			if _, err := q.items.Update(ctx, item.ID, map[string]any{"data": string(raw)}); err != nil {
				return err
			}
			rewritten++
		}
		return nil
	})
	return rewritten, err
}

func replaceString(v any, oldID, newID string) (any, bool) {
	switch t := v.(type) {
	case string:
		if t == oldID {
			return newID, true
		}
		return t, false
	case map[string]any:
		changed := false
		for k, child := range t {
			next, c := replaceString(child, oldID, newID)
			if c {
				t[k] = next
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			next, c := replaceString(child, oldID, newID)
			if c {
				t[i] = next
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}

// DeadLetter moves item out of the queue into sync_dead_letters.
func (q *Queue) DeadLetter(ctx context.Context, item models.SyncQueueItem, reason enums.DeadLetterReason, cause error) (models.DeadLetter, error) {
	if !reason.IsValid() {
		return models.DeadLetter{}, errors.New(errors.CodeValidation, fmt.Sprintf("invalid dead letter reason %q", reason))
	}
	entry := models.DeadLetter{
		ID:         q.newID(),
		QueueID:    item.ID,
		Operation:  item.Operation,
		Table:      item.Table,
		Data:       item.Data,
		Timestamp:  item.Timestamp,
		RetryCount: item.RetryCount,
		Reason:     reason,
		FailedAt:   q.now().UnixMilli(),
	}
	if cause != nil {
		msg := truncate(cause.Error())
		entry.ErrorMessage = &msg
	}

	err := q.store.WithTx(ctx, func(ctx context.Context) error {
		if err := q.dead.Put(ctx, &entry); err != nil {
			return err
		}
		return q.items.Delete(ctx, item.ID)
	})
	if err != nil {
		return models.DeadLetter{}, err
	}

	q.logg.Warn(q.logg.WithFields(ctx, map[string]any{
		"queue_id":    item.ID,
		"table":       item.Table,
		"operation":   item.Operation,
		"retry_count": item.RetryCount,
		"reason":      reason,
	}), "sync item dead-lettered")
	return entry, nil
}

// ListDeadLetters returns the most recent dead letters first. A non-positive
// limit returns all of them.
func (q *Queue) ListDeadLetters(ctx context.Context, limit int) []models.DeadLetter {
	rows := q.dead.GetAll(ctx)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].FailedAt > rows[j].FailedAt })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Requeue moves a dead letter back into the queue with fresh retry bookkeeping.
func (q *Queue) Requeue(ctx context.Context, deadLetterID string) (models.SyncQueueItem, error) {
	entry, ok := q.dead.Get(ctx, deadLetterID)
	if !ok {
		return models.SyncQueueItem{}, errors.New(errors.CodeNotFound, fmt.Sprintf("dead letter %q not found", deadLetterID))
	}
	item := models.SyncQueueItem{
		ID:        entry.QueueID,
		Operation: entry.Operation,
		Table:     entry.Table,
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
	}
	err := q.store.WithTx(ctx, func(ctx context.Context) error {
		if err := q.items.Put(ctx, &item); err != nil {
			return err
		}
		return q.dead.Delete(ctx, entry.ID)
	})
	if err != nil {
		return models.SyncQueueItem{}, err
	}
	return item, nil
}

// PurgeDeadLettersBefore deletes dead letters that failed before cutoff.
func (q *Queue) PurgeDeadLettersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.dead.DeleteWhere(ctx, clause.Lt{Column: clause.Column{Name: "failed_at"}, Value: cutoff.UnixMilli()})
}

// newOrderedID returns a UUIDv7. Ids generated in the same millisecond still
// sort in creation order, which ListPending uses as its tiebreak.
func newOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// truncate cuts message to at most maxErrorLen bytes on a rune boundary.
func truncate(message string) string {
	if len(message) <= maxErrorLen {
		return message
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
