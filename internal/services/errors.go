package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"captioner/internal/task"
)

var (
	// ErrConfiguration marks user-fixable configuration problems (missing
	// model, endpoint, credentials). Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrQuotaExceeded marks the shared-service daily limit being hit.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrProvider marks a network/provider failure after retries exhausted.
	ErrProvider = errors.New("provider error")
	// ErrTransient marks a retryable failure (timeout, rate limit).
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks an external call exceeding its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled marks user-initiated termination. Not a failure.
	ErrCancelled = errors.New("cancelled")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCancellation reports whether the error represents a user or context
// initiated stop rather than a genuine failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsRetryable reports whether a stage-level retry is worth attempting.
func IsRetryable(err error) bool {
	if err == nil || IsCancellation(err) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// FailureStatus maps a stage error to the task status the controller should
// persist after the stage fails.
func FailureStatus(err error) task.Status {
	if IsCancellation(err) {
		return task.StatusCancelled
	}
	return task.StatusFailed
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
