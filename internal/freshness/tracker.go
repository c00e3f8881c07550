package freshness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/localstore"
)

// DefaultMaxAge applies when IsFresh is called without a positive max age.
const DefaultMaxAge = 300000 * time.Millisecond

// Tracker keeps one metadata record per collection describing its last
// refresh. Freshness is purely elapsed time since that refresh.
type Tracker struct {
	meta          *localstore.Collection[models.CacheMetadata]
	now           func() time.Time
	defaultMaxAge time.Duration
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithDefaultMaxAge overrides DefaultMaxAge.
func WithDefaultMaxAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.defaultMaxAge = d
		}
	}
}

func NewTracker(store *localstore.Store, opts ...Option) *Tracker {
	t := &Tracker{
		meta:          localstore.MustCollection[models.CacheMetadata](store, enums.CollectionCacheMetadata),
		now:           time.Now,
		defaultMaxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's clock reading in unix milliseconds.
func (t *Tracker) Now() int64 {
	return t.now().UnixMilli()
}

// Update upserts metadata keyed by table name.
func (t *Tracker) Update(ctx context.Context, meta models.CacheMetadata) error {
	if !meta.Table.IsValid() {
		return fmt.Errorf("unknown collection %q", meta.Table)
	}
	return t.meta.Put(ctx, &meta)
}

// Get returns the metadata for table, if any.
func (t *Tracker) Get(ctx context.Context, table enums.Collection) (*models.CacheMetadata, bool) {
	return t.meta.Get(ctx, string(table))
}

// All returns metadata for every tracked collection.
func (t *Tracker) All(ctx context.Context) []models.CacheMetadata {
	return t.meta.GetAll(ctx)
}

// IsFresh reports whether table was refreshed less than maxAge ago. A
// non-positive maxAge selects the default. Missing metadata is never fresh.
func (t *Tracker) IsFresh(ctx context.Context, table enums.Collection, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = t.defaultMaxAge
	}
	meta, ok := t.Get(ctx, table)
	if !ok {
		return false
	}
	return t.Now()-meta.LastSync < maxAge.Milliseconds()
}

// Age returns how long ago table was refreshed.
func (t *Tracker) Age(ctx context.Context, table enums.Collection) (time.Duration, bool) {
	meta, ok := t.Get(ctx, table)
	if !ok {
		return 0, false
	}
	return time.Duration(t.Now()-meta.LastSync) * time.Millisecond, true
}

// Touch records a refresh of table with payload: last_sync becomes now, the
// version is bumped and the checksum recomputed.
func (t *Tracker) Touch(ctx context.Context, table enums.Collection, payload any) (models.CacheMetadata, error) {
	sum, err := Checksum(payload)
	if err != nil {
		return models.CacheMetadata{}, err
	}
	meta := models.CacheMetadata{Table: table, LastSync: t.Now(), Version: 1, Checksum: sum}
	if prev, ok := t.Get(ctx, table); ok {
		meta.Version = prev.Version + 1
	}
	if err := t.Update(ctx, meta); err != nil {
		return models.CacheMetadata{}, err
	}
	return meta, nil
}

// Unchanged reports whether payload hashes to the stored checksum and the
// last refresh is younger than within.
func (t *Tracker) Unchanged(ctx context.Context, table enums.Collection, payload any, within time.Duration) bool {
	if within <= 0 {
		return false
	}
	meta, ok := t.Get(ctx, table)
	if !ok || t.Now()-meta.LastSync >= within.Milliseconds() {
		return false
	}
	sum, err := Checksum(payload)
	return err == nil && sum == meta.Checksum
}

// Invalidate drops the metadata for table so the next IsFresh is false.
func (t *Tracker) Invalidate(ctx context.Context, table enums.Collection) error {
	return t.meta.Delete(ctx, string(table))
}

// Checksum fingerprints the JSON encoding of payload with xxhash64. It is
// order sensitive and not suitable for anything security related.
func Checksum(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("checksum payload: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw)), nil
}
