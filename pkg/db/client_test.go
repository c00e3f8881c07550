package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.DBConfig{
		Driver:       config.DriverSQLite,
		DSN:          config.SQLiteDSN(filepath.Join(t.TempDir(), "client.db"), 0),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	client, err := New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return client
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	db := client.DB()

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Driver() != config.DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", client.Driver())
	}
}

func TestNewRejectsMissingDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DriverSQLite}, nil); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.DB().WithContext(ctx).Create(&testModel{ID: 7, Name: "first"}).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := client.DB().WithContext(ctx).Create(&testModel{ID: 7, Name: "second"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	pgErr := fmt.Errorf("ERROR: duplicate key value violates unique constraint \"uq_sales\"")
	if !IsUniqueViolation(pgErr, "uq_sales") {
		t.Fatal("expected constraint name match")
	}
}

func TestIsBusy(t *testing.T) {
	if !IsBusy(fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrBusy})) {
		t.Fatal("expected busy detection through wrapping")
	}
	if IsBusy(errors.New("other")) {
		t.Fatal("plain errors are not busy errors")
	}
}

func TestWithTxRetriesBusy(t *testing.T) {
	client := newTestClient(t)
	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		if calls == 1 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return tx.Create(&testModel{Name: "after busy"}).Error
	})
	if err != nil {
		t.Fatalf("expected busy transaction to succeed on retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}

	calls = 0
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Fatalf("non-busy errors must not retry: calls=%d err=%v", calls, err)
	}
}
