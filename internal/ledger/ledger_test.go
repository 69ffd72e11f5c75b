package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"captioner/internal/services"
)

func openTestLedger(t *testing.T, limit, retention int) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "usage.db"), limit, retention)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestIncrementStopsAtLimit(t *testing.T) {
	l := openTestLedger(t, 3, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Increment(ctx, ServiceLLM); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	err := l.Increment(ctx, ServiceLLM)
	if !errors.Is(err, services.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}

	ok, count, err := l.CheckAvailable(ctx, ServiceLLM)
	if err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if ok {
		t.Fatal("expected quota exhausted")
	}
	if count != 3 {
		t.Fatalf("count overshot the limit: %d", count)
	}
}

func TestCheckAvailableReservesNothing(t *testing.T) {
	l := openTestLedger(t, 5, 0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, count, err := l.CheckAvailable(ctx, ServiceLLM)
		if err != nil {
			t.Fatalf("CheckAvailable: %v", err)
		}
		if !ok || count != 0 {
			t.Fatalf("read-only check mutated state: ok=%v count=%d", ok, count)
		}
	}
}

func TestConcurrentIncrementsNeverExceedLimit(t *testing.T) {
	const limit = 25
	l := openTestLedger(t, limit, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, limit*2)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Increment(ctx, ServiceLLM)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	quotaErrs := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, services.ErrQuotaExceeded):
			quotaErrs++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != limit {
		t.Fatalf("expected exactly %d successes, got %d", limit, succeeded)
	}
	if quotaErrs != limit {
		t.Fatalf("expected %d quota errors, got %d", limit, quotaErrs)
	}

	_, count, err := l.CheckAvailable(ctx, ServiceLLM)
	if err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if count != limit {
		t.Fatalf("persisted count %d exceeds limit %d", count, limit)
	}
}

func TestServicesCountIndependently(t *testing.T) {
	l := openTestLedger(t, 2, 0)
	ctx := context.Background()

	if err := l.Increment(ctx, ServiceLLM); err != nil {
		t.Fatalf("increment llm: %v", err)
	}
	if err := l.Increment(ctx, ServiceLLM); err != nil {
		t.Fatalf("increment llm: %v", err)
	}
	if err := l.Increment(ctx, "translate"); err != nil {
		t.Fatalf("other service should have its own budget: %v", err)
	}
}

func TestRolloverResetsCount(t *testing.T) {
	l := openTestLedger(t, 1, 0)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }
	if err := l.Increment(ctx, ServiceLLM); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.Increment(ctx, ServiceLLM); !errors.Is(err, services.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}

	l.now = func() time.Time { return day.AddDate(0, 0, 1) }
	if err := l.Increment(ctx, ServiceLLM); err != nil {
		t.Fatalf("new day should reset the budget: %v", err)
	}
}

func TestPruneRemovesStaleRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	l, err := Open(path, 10, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -40).Format("2006-01-02")
	if _, err := l.db.Exec(
		`INSERT INTO service_usage (service, day, count) VALUES (?, ?, ?)`,
		ServiceLLM, stale, 7,
	); err != nil {
		t.Fatalf("seed stale row: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, 10, 30)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	history, err := reopened.History(context.Background(), 90)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	for _, u := range history {
		if u.Day == stale {
			t.Fatal("stale row survived pruning")
		}
	}
}
