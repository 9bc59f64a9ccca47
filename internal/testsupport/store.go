package testsupport

import (
	"path/filepath"
	"testing"

	"wavedaq/internal/store"
)

// MustOpenStore opens a catalog store in a temp directory and closes it when
// the test ends.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}
