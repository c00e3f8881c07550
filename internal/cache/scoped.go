package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/posdesk/internal/freshness"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
)

// deps are shared by every cache in a Caches set.
type deps struct {
	tracker  *freshness.Tracker
	metrics  *metrics.CacheMetrics
	logg     *logger.Logger
	throttle time.Duration
}

// Scoped caches records that belong to one owner (a store or a business).
type Scoped[T any] struct {
	deps
	coll  *localstore.Collection[T]
	index localstore.Index[T]
	scope func(*T) *string
}

func newScoped[T any](store *localstore.Store, d deps, name enums.Collection, scopeColumn string, scope func(*T) *string) *Scoped[T] {
	coll := localstore.MustCollection[T](store, name)
	return &Scoped[T]{
		deps:  d,
		coll:  coll,
		index: coll.MustIndex(scopeColumn),
		scope: scope,
	}
}

// Collection returns the cache's collection name.
func (s *Scoped[T]) Collection() enums.Collection {
	return s.coll.Name()
}

// ByScope returns every cached record for scopeID.
func (s *Scoped[T]) ByScope(ctx context.Context, scopeID string) []T {
	return s.coll.GetByIndex(ctx, s.index, scopeID)
}

// Get returns one cached record.
func (s *Scoped[T]) Get(ctx context.Context, id string) (*T, bool) {
	return s.coll.Get(ctx, id)
}

// Put upserts one record without touching the rest of its scope.
func (s *Scoped[T]) Put(ctx context.Context, record *T) error {
	if record == nil {
		return errors.New(errors.CodeValidation, "record is required")
	}
	if *s.scope(record) == "" {
		return errors.New(errors.CodeValidation, fmt.Sprintf("%s record has no scope", s.coll.Name()))
	}
	return s.coll.Put(ctx, record)
}

// Delete removes one cached record.
func (s *Scoped[T]) Delete(ctx context.Context, id string) error {
	return s.coll.Delete(ctx, id)
}

type scopedPayload[T any] struct {
	Scope   string `json:"scope"`
	Records []T    `json:"records"`
}

// Cache replaces everything cached for scopeID with records: the scope is
// emptied and refilled in one transaction, then freshness metadata is
// touched. An empty slice clears the scope. Records carrying a different
// scope are rejected; records without one inherit scopeID.
func (s *Scoped[T]) Cache(ctx context.Context, records []T, scopeID string) error {
	if scopeID == "" {
		return errors.New(errors.CodeValidation, "scope id is required")
	}
	for i := range records {
		owner := s.scope(&records[i])
		switch *owner {
		case "":
			*owner = scopeID
		case scopeID:
		default:
			return errors.New(errors.CodeValidation, fmt.Sprintf("%s record belongs to %q, not %q", s.coll.Name(), *owner, scopeID))
		}
	}

	table := s.coll.Name()
	payload := scopedPayload[T]{Scope: scopeID, Records: records}
	if s.tracker.Unchanged(ctx, table, payload, s.throttle) {
		s.metrics.IncWrite(string(table), metrics.CacheSkipped)
		return nil
	}

	if err := s.coll.ReplaceWhere(ctx, s.index, scopeID, records); err != nil {
		s.metrics.IncWrite(string(table), metrics.CacheFailed)
		return err
	}
	s.metrics.IncWrite(string(table), metrics.CacheWritten)

	if _, err := s.tracker.Touch(ctx, table, payload); err != nil {
		return err
	}
	return nil
}

// Global caches business-agnostic reference data.
type Global[T any] struct {
	deps
	coll   *localstore.Collection[T]
	byCode localstore.Index[T]
}

func newGlobal[T any](store *localstore.Store, d deps, name enums.Collection) *Global[T] {
	coll := localstore.MustCollection[T](store, name)
	return &Global[T]{deps: d, coll: coll, byCode: coll.MustIndex("code")}
}

// Collection returns the cache's collection name.
func (g *Global[T]) Collection() enums.Collection {
	return g.coll.Name()
}

// All returns every cached record.
func (g *Global[T]) All(ctx context.Context) []T {
	return g.coll.GetAll(ctx)
}

// ByCode returns the record with the given ISO code.
func (g *Global[T]) ByCode(ctx context.Context, code string) (*T, bool) {
	rows := g.coll.GetByIndex(ctx, g.byCode, code)
	if len(rows) == 0 {
		return nil, false
	}
	return &rows[0], true
}

// Cache clears the whole collection and reinserts records.
func (g *Global[T]) Cache(ctx context.Context, records []T) error {
	table := g.coll.Name()
	if g.tracker.Unchanged(ctx, table, records, g.throttle) {
		g.metrics.IncWrite(string(table), metrics.CacheSkipped)
		return nil
	}
	if err := g.coll.ReplaceAll(ctx, records); err != nil {
		g.metrics.IncWrite(string(table), metrics.CacheFailed)
		return err
	}
	g.metrics.IncWrite(string(table), metrics.CacheWritten)
	_, err := g.tracker.Touch(ctx, table, records)
	return err
}

// Settings caches 1:1 configuration records keyed by their owner id.
type Settings[T any] struct {
	deps
	coll  *localstore.Collection[T]
	owner func(*T) *string
}

func newSettings[T any](store *localstore.Store, d deps, name enums.Collection, owner func(*T) *string) *Settings[T] {
	return &Settings[T]{deps: d, coll: localstore.MustCollection[T](store, name), owner: owner}
}

// Collection returns the cache's collection name.
func (s *Settings[T]) Collection() enums.Collection {
	return s.coll.Name()
}

// Get returns the settings owned by ownerID.
func (s *Settings[T]) Get(ctx context.Context, ownerID string) (*T, bool) {
	return s.coll.Get(ctx, ownerID)
}

// Cache upserts the settings record under its owner id; there is at most one
// record per owner.
func (s *Settings[T]) Cache(ctx context.Context, record *T) error {
	if record == nil {
		return errors.New(errors.CodeValidation, "settings record is required")
	}
	if *s.owner(record) == "" {
		return errors.New(errors.CodeValidation, fmt.Sprintf("%s record has no owner id", s.coll.Name()))
	}
	if err := s.coll.Put(ctx, record); err != nil {
		s.metrics.IncWrite(string(s.coll.Name()), metrics.CacheFailed)
		return err
	}
	s.metrics.IncWrite(string(s.coll.Name()), metrics.CacheWritten)
	_, err := s.tracker.Touch(ctx, s.coll.Name(), record)
	return err
}

// Delete removes the settings owned by ownerID.
func (s *Settings[T]) Delete(ctx context.Context, ownerID string) error {
	return s.coll.Delete(ctx, ownerID)
}
