package testsupport

import (
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/runstate"
)

// MustOpenStore opens the configured run state backend and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) runstate.Store {
	t.Helper()

	store, err := runstate.Open(cfg)
	if err != nil {
		t.Fatalf("runstate.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
