package integration

import (
	"path/filepath"
	"testing"

	"github.com/zoobzio/stash"
	"github.com/zoobzio/stash/pkg/file"
	"github.com/zoobzio/stash/pkg/sqlite"
)

// backends returns the stores exercised by every integration test.
// Each call returns fresh, empty stores.
func backends(t *testing.T) map[string]stash.Store {
	t.Helper()

	fileStore, err := file.New(t.TempDir(), file.WithExtension(".json"))
	if err != nil {
		t.Fatalf("file.New() error = %v", err)
	}

	sqliteStore, err := sqlite.Open(filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := sqliteStore.Close(); err != nil {
			t.Logf("failed to close sqlite store: %v", err)
		}
	})

	return map[string]stash.Store{
		"memory": stash.NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}
