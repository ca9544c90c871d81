package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bondcrm/notionsync/internal/store"
	"github.com/bondcrm/notionsync/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Bootstrap(context.Background(), db); err != nil {
		t.Fatalf("sqlite bootstrap: %v", err)
	}
	return NewWithDB(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestBootstrap_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "sync.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	defer func() { _ = db.Close() }()
	for i := 0; i < 2; i++ {
		if err := Bootstrap(context.Background(), db); err != nil {
			t.Fatalf("bootstrap #%d: %v", i+1, err)
		}
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
