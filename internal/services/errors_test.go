package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"captioner/internal/services"
	"captioner/internal/task"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "translate", "batch", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"translate", "batch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	cancelErr := services.Wrap(services.ErrCancelled, "optimize", "dispatch", "stopped", nil)
	if status := services.FailureStatus(cancelErr); status != task.StatusCancelled {
		t.Fatalf("expected cancelled for cancellation, got %s", status)
	}
	if status := services.FailureStatus(context.Canceled); status != task.StatusCancelled {
		t.Fatalf("expected cancelled for context.Canceled, got %s", status)
	}

	providerErr := services.Wrap(services.ErrProvider, "translate", "batch", "unreachable", errors.New("io"))
	if status := services.FailureStatus(providerErr); status != task.StatusFailed {
		t.Fatalf("expected failed for provider error, got %s", status)
	}
}

func TestIsRetryable(t *testing.T) {
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "s", "op", "rate limited", nil)) {
		t.Fatal("transient errors should be retryable")
	}
	if !services.IsRetryable(services.ErrTimeout) {
		t.Fatal("timeouts should be retryable")
	}
	if services.IsRetryable(services.ErrConfiguration) {
		t.Fatal("configuration errors should not be retryable")
	}
	if services.IsRetryable(context.Canceled) {
		t.Fatal("cancellation should not be retryable")
	}
}
