package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/memory/checkpoint/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleCheckpoint(threadID string) *memory.Checkpoint {
	return &memory.Checkpoint{
		ThreadID: threadID,
		Window: []core.Turn{
			{ID: "t1", Role: core.RoleUser, Content: "hi", CreatedAt: time.Now().UTC().Truncate(time.Millisecond)},
			{ID: "t2", Role: core.RoleAssistant, Content: "hello!", CreatedAt: time.Now().UTC().Truncate(time.Millisecond)},
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStore_GetAbsent(t *testing.T) {
	store := openStore(t)

	cp, ok, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get on absent key must not error: %v", err)
	}
	if ok || cp != nil {
		t.Errorf("Expected explicit absent signal, got ok=%v cp=%v", ok, cp)
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	want := sampleCheckpoint("thread-1")
	if err := store.Put(ctx, "thread-1", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "thread-1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if got.ThreadID != want.ThreadID || len(got.Window) != 2 {
		t.Errorf("Round-trip mismatch: %+v", got)
	}
	if got.Window[0].Content != "hi" || got.Window[1].Role != core.RoleAssistant {
		t.Errorf("Window content mismatch: %+v", got.Window)
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	first := sampleCheckpoint("thread-1")
	if err := store.Put(ctx, "thread-1", first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := sampleCheckpoint("thread-1")
	second.Window = second.Window[:1]
	if err := store.Put(ctx, "thread-1", second); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	got, _, err := store.Get(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Window) != 1 {
		t.Errorf("Last writer should win, window=%d", len(got.Window))
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	if err := store.Put(ctx, "thread-1", sampleCheckpoint("thread-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "thread-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "thread-1"); err != nil {
		t.Fatalf("Deleting an absent key must not error: %v", err)
	}

	_, ok, err := store.Get(ctx, "thread-1")
	if err != nil || ok {
		t.Errorf("Checkpoint survived delete: ok=%v err=%v", ok, err)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Put(ctx, "thread-1", sampleCheckpoint("thread-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.Close()

	reopened, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	_, ok, err := reopened.Get(ctx, "thread-1")
	if err != nil || !ok {
		t.Errorf("Checkpoint did not survive restart: ok=%v err=%v", ok, err)
	}
}
