// Package localstoretest opens throwaway local stores for tests.
package localstoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// Config returns a sqlite config pointing into the test's temp dir.
func Config(t testing.TB) config.DBConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posdesk-test.db")
	return config.DBConfig{
		Driver:       config.DriverSQLite,
		Path:         path,
		DSN:          config.SQLiteDSN(path, 0),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// New returns an initialized store that is closed when the test ends.
func New(t testing.TB) *localstore.Store {
	t.Helper()
	store := localstore.New(Config(t), logger.Nop())
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init local store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
