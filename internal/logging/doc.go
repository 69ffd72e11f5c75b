// Package logging wraps log/slog with the handlers and typed attribute
// helpers used across the pipeline.
//
// Two output formats are supported: a console handler that renders compact
// key=value lines (colored when stdout is a terminal) and a JSON handler for
// machine consumption. Context helpers derive standardized fields (task_id,
// stage, correlation_id) so stage logs stay homogeneous.
package logging
