// Package storetest opens migrated SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/silverlake/silverlake/internal/platform"
	"github.com/silverlake/silverlake/internal/store"
)

// New returns a store backed by a fresh SQLite file in t.TempDir(), with
// all migrations applied. It is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "warehouse.db")
	st, err := store.Open(context.Background(), "sqlite", dsn, 1)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := platform.AutoMigrate(st.DB(), st.Dialect().Name); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return st
}
