package cron

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemRedis() *memRedis { return &memRedis{data: map[string]string{}} }

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memRedis) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok && v == owner {
		delete(m.data, key)
		return true, nil
	}
	return false, nil
}

func (m *memRedis) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func TestRedisLockExclusive(t *testing.T) {
	store := newMemRedis()
	first, err := NewRedisLock(store, "posdesk:lock:replay", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "posdesk:lock:replay", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second acquire should fail while held")
	}
	// a non-owner release must not free the key
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("lock freed by non-owner")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newMemRedis()
	lock, _ := NewRedisLock(store, "k", 0)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	store.expire("k")
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewRedisLock(newMemRedis(), "", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestLocalLockTryAcquire(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("first acquire failed")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("second acquire should fail")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire after release failed")
	}
}

func TestNewLockForFallsBackToLocal(t *testing.T) {
	lock, err := NewLockFor(nil, "local:cron", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := lock.(*LocalLock); !ok {
		t.Fatalf("expected local lock, got %T", lock)
	}
}
