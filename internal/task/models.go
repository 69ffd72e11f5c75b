package task

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusValidating  Status = "validating"
	StatusSplitting   Status = "splitting"
	StatusOptimizing  Status = "optimizing"
	StatusTranslating Status = "translating"
	StatusSaving      Status = "saving"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusSplitting,
	StatusOptimizing,
	StatusTranslating,
	StatusSaving,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating:  {},
	StatusSplitting:   {},
	StatusOptimizing:  {},
	StatusTranslating: {},
	StatusSaving:      {},
}

// Task represents a subtitle-processing task persisted in SQLite.
type Task struct {
	ID              int64
	InputPath       string
	OutputPath      string
	VideoPath       string
	Status          Status
	ConfigJSON      string
	NextTask        bool
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (t Task) IsProcessing() bool {
	_, ok := processingStatuses[t.Status]
	return ok
}

// IsTerminal reports whether the task has reached an absorbing state.
func (t Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// SetProgress updates all three progress fields together.
func (t *Task) SetProgress(stage, message string, percent float64) {
	t.ProgressStage = stage
	t.ProgressMessage = message
	t.ProgressPercent = percent
}

// SetFailed marks the task as failed with the given error message.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.ProgressMessage = message
	t.ProgressStage = "Failed"
}

// SetCancelled marks the task as terminated by the user.
func (t *Task) SetCancelled() {
	t.Status = StatusCancelled
	t.ProgressStage = "Cancelled"
	t.ProgressMessage = "terminated"
	t.ErrorMessage = ""
}
