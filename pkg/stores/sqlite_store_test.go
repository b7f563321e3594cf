package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostwright/hostwright/pkg/history"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entryAt(target, task, status string, started time.Time) history.Entry {
	return history.Entry{
		ID:        uuid.New(),
		Target:    target,
		Task:      task,
		Category:  "services",
		Command:   "systemctl restart nginx",
		Status:    status,
		Attempts:  1,
		Stdout:    "ok",
		StartedAt: started,
		Duration:  120 * time.Millisecond,
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("empty path should be rejected")
	}
}

func TestSaveAndListInvocations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	want := entryAt("web-1", "svc.restart", "succeeded", base)
	if err := store.SaveInvocation(ctx, want); err != nil {
		t.Fatalf("SaveInvocation: %v", err)
	}
	if err := store.SaveInvocation(ctx, entryAt("web-1", "pkg.install", "failed", base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveInvocation(ctx, entryAt("db-1", "svc.restart", "succeeded", base.Add(2*time.Minute))); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListInvocations(ctx, "web-1", 0)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Task != "pkg.install" || got[1].Task != "svc.restart" {
		t.Errorf("order = %s, %s", got[0].Task, got[1].Task)
	}

	e := got[1]
	if e.ID != want.ID || e.Command != want.Command || e.Stdout != "ok" || e.Attempts != 1 {
		t.Errorf("entry = %+v", e)
	}
	if !e.StartedAt.Equal(base) {
		t.Errorf("started_at = %v, want %v", e.StartedAt, base)
	}
	if e.Duration != 120*time.Millisecond {
		t.Errorf("duration = %v", e.Duration)
	}

	all, err := store.ListInvocations(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all targets = %d entries, want 3", len(all))
	}
}

func TestListInvocationsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := store.SaveInvocation(ctx, entryAt("web-1", "probe.uname", "succeeded", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.ListInvocations(ctx, "web-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("entries = %d, want 2", len(got))
	}
}

func TestCountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	statuses := []string{"succeeded", "succeeded", "failed", "warned"}
	for i, s := range statuses {
		if err := store.SaveInvocation(ctx, entryAt("web-1", "svc.restart", s, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SaveInvocation(ctx, entryAt("db-1", "svc.restart", "failed", base)); err != nil {
		t.Fatal(err)
	}

	counts, err := store.CountByStatus(ctx, "web-1")
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts["succeeded"] != 2 || counts["failed"] != 1 || counts["warned"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("Init run %d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
	}
}
