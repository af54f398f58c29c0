package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yegors/webchat/pkg/logger"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	store, err := NewKVStore(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "session_id", "sess-1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := store.Get(ctx, "session_id")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "sess-1" {
		t.Errorf("value = %q, want sess-1", value)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "auth_token", "old")
	if err := store.Set(ctx, "auth_token", "new"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if value, _ := store.Get(ctx, "auth_token"); value != "new" {
		t.Errorf("value = %q, want new", value)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("got %v, want ErrKeyNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "session_id", "sess-1")
	if err := store.Delete(ctx, "session_id"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "session_id"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("deleted key still present: %v", err)
	}

	// Absent keys delete cleanly
	if err := store.Delete(ctx, "never_existed"); err != nil {
		t.Errorf("deleting an absent key errored: %v", err)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "session_id", "sess-1")
	store.Set(ctx, "auth_token", "token-1")
	store.Set(ctx, "last_activity_ms", "123")

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	for _, key := range []string{"session_id", "auth_token", "last_activity_ms"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("key %s survived clear: %v", key, err)
		}
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewKVStore(path, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	store.Set(ctx, "session_id", "sess-1")
	store.Close()

	reopened, err := NewKVStore(path, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if value, err := reopened.Get(ctx, "session_id"); err != nil || value != "sess-1" {
		t.Errorf("value after reopen = %q, %v", value, err)
	}
}
