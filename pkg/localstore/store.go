package localstore

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/db"
	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/migrate"
)

// ErrNotInitialized is returned by write paths used before Init or after Close.
var ErrNotInitialized = stdErrors.New("local store is not initialized")

// Store owns the local database handle. It is created by the composition root
// and passed to every cache and queue; there is no package-level connection.
type Store struct {
	cfg    config.DBConfig
	logg   *logger.Logger
	schema *Schema
	fsys   fs.FS

	group  singleflight.Group
	mu     sync.RWMutex
	client *db.Client

	passes  atomic.Int64
	applied atomic.Int64
}

type Option func(*Store)

// WithSchema overrides the collection registry.
func WithSchema(schema *Schema) Option {
	return func(s *Store) { s.schema = schema }
}

// WithMigrations overrides the migration source.
func WithMigrations(fsys fs.FS) Option {
	return func(s *Store) { s.fsys = fsys }
}

func New(cfg config.DBConfig, logg *logger.Logger, opts ...Option) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{cfg: cfg, logg: logg}
	for _, opt := range opts {
		opt(s)
	}
	if s.schema == nil {
		s.schema = DefaultSchema()
	}
	if s.fsys == nil {
		s.fsys = migrate.Embedded()
	}
	return s
}

// Init opens the database and applies pending migrations. Concurrent callers
// share a single open and a single migration pass; calls after a successful
// Init return immediately.
func (s *Store) Init(ctx context.Context) error {
	if s.ready() {
		return nil
	}
	_, err, _ := s.group.Do("init", func() (any, error) {
		if s.ready() {
			return nil, nil
		}
		return nil, s.open(ctx)
	})
	return err
}

func (s *Store) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *Store) open(ctx context.Context) error {
	client, err := db.New(ctx, s.cfg, s.logg)
	if err != nil {
		return errors.Wrap(errors.CodeStorage, err, "open local store")
	}

	sqlDB, err := client.SQL()
	if err != nil {
		_ = client.Close()
		return errors.Wrap(errors.CodeStorage, err, "open local store")
	}

	applied, err := migrate.Up(ctx, sqlDB, client.Driver(), s.fsys)
	s.passes.Add(1)
	if err != nil {
		_ = client.Close()
		return errors.Wrap(errors.CodeStorage, err, "migrate local store")
	}
	s.applied.Add(int64(applied))

	if err := s.schema.Verify(ctx, client.DB()); err != nil {
		_ = client.Close()
		return errors.Wrap(errors.CodeStorage, err, "verify local schema")
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"driver":             client.Driver(),
		"migrations_applied": applied,
		"collections":        len(s.schema.Collections()),
	}), "local store ready")
	return nil
}

// Close releases the connection. A later Init re-opens it.
func (s *Store) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Schema returns the collection registry.
func (s *Store) Schema() *Schema {
	return s.schema
}

// SchemaPasses counts migration passes run by Init over the store's lifetime.
func (s *Store) SchemaPasses() int64 {
	return s.passes.Load()
}

// MigrationsApplied counts individual migrations applied by Init.
func (s *Store) MigrationsApplied() int64 {
	return s.applied.Load()
}

// SchemaVersion reports the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	client, err := s.Client()
	if err != nil {
		return 0, err
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return 0, err
	}
	return migrate.Version(ctx, sqlDB, client.Driver(), s.fsys)
}

// Client returns the open database client.
func (s *Store) Client() (*db.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotInitialized
	}
	return s.client, nil
}

// Ping verifies the store is open and reachable.
func (s *Store) Ping(ctx context.Context) error {
	client, err := s.Client()
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

type txKey struct{}

type txBinding struct {
	store *Store
	tx    *gorm.DB
}

// WithTx runs fn inside one transaction. Collection calls made with the
// context passed to fn join that transaction; nested calls reuse it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if b, ok := ctx.Value(txKey{}).(txBinding); ok && b.store == s {
		return fn(ctx)
	}
	client, err := s.Client()
	if err != nil {
		return errors.Wrap(errors.CodeStorage, err, "begin transaction")
	}
	return client.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, txBinding{store: s, tx: tx}))
	})
}

// conn returns the transaction bound to ctx, or the pooled connection.
func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if b, ok := ctx.Value(txKey{}).(txBinding); ok && b.store == s {
		return b.tx, nil
	}
	client, err := s.Client()
	if err != nil {
		return nil, err
	}
	return client.DB().WithContext(ctx), nil
}

// ClearTable removes every record from one collection.
func (s *Store) ClearTable(ctx context.Context, name enums.Collection) error {
	if _, ok := s.schema.Lookup(name); !ok {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unknown collection %q", name))
	}
	conn, err := s.conn(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeStorage, err, "clear "+string(name))
	}
	if err := conn.Exec("DELETE FROM ?", clause.Table{Name: string(name)}).Error; err != nil {
		return errors.Wrap(errors.CodeStorage, err, "clear "+string(name))
	}
	return nil
}

// ClearAllData empties every declared collection, pending sync items included.
func (s *Store) ClearAllData(ctx context.Context) error {
	var errs error
	for _, def := range s.schema.Collections() {
		errs = multierr.Append(errs, s.ClearTable(ctx, def.Name))
	}
	return errs
}

func (s *Store) warnRead(ctx context.Context, collection enums.Collection, op string, err error) {
	ctx = s.logg.WithCollection(ctx, string(collection))
	ctx = s.logg.WithFields(ctx, map[string]any{"op": op, "error": err.Error()})
	s.logg.Warn(ctx, "local read failed; serving empty result")
}
