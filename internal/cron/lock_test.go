package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeLockStore struct {
	data map[string]string
	ttl  time.Duration
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{data: make(map[string]string)}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, held := f.data[key]; held {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttl = ttl
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func TestLockSecondReplicaSkips(t *testing.T) {
	store := newFakeLockStore()
	first, err := NewRedisLock(store, "rql:cron:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, "rql:cron:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	held, err := first.Acquire(context.Background())
	if err != nil || !held {
		t.Fatalf("first replica must take the lease, got %v %v", held, err)
	}
	held, err = second.Acquire(context.Background())
	if err != nil || held {
		t.Fatalf("second replica must skip the cycle, got %v %v", held, err)
	}

	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	held, err = second.Acquire(context.Background())
	if err != nil || !held {
		t.Fatalf("lease must be free after release, got %v %v", held, err)
	}
}

func TestLockReleaseIsFencedByOwnerToken(t *testing.T) {
	store := newFakeLockStore()
	expired, err := NewRedisLock(store, "rql:cron:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if held, err := expired.Acquire(context.Background()); err != nil || !held {
		t.Fatalf("acquire: %v %v", held, err)
	}

	// The lease expires mid-run and another replica takes it.
	delete(store.data, "rql:cron:sweeps")
	current, err := NewRedisLock(store, "rql:cron:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if held, err := current.Acquire(context.Background()); err != nil || !held {
		t.Fatalf("acquire: %v %v", held, err)
	}

	if err := expired.Release(context.Background()); err != nil {
		t.Fatalf("stale release must be a no-op: %v", err)
	}
	if _, stillHeld := store.data["rql:cron:sweeps"]; !stillHeld {
		t.Fatal("stale replica must not delete the current lease")
	}
}

func TestLockDefaultsTTL(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "rql:cron:sweeps", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if store.ttl != fallbackTTL {
		t.Fatalf("expected daily fallback TTL, got %s", store.ttl)
	}
}
