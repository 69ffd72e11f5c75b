package testsupport

import (
	"context"
	"testing"

	"captioner/internal/config"
	"captioner/internal/ledger"
	"captioner/internal/task"
)

// MustOpenStore opens a task.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *task.Store {
	t.Helper()

	store, err := task.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("task.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenLedger opens a usage ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()

	l, err := ledger.Open(cfg.DatabasePath(), cfg.Quota.DailyLimit, cfg.Quota.RetentionDays)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		l.Close()
	})
	return l
}

// NewTask creates a persisted task for tests using the provided store.
func NewTask(t testing.TB, store *task.Store, inputPath, outputPath string) *task.Task {
	t.Helper()

	tk, err := store.New(context.Background(), inputPath, outputPath, "", "{}", false)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return tk
}
