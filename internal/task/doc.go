// Package task persists subtitle-processing tasks in SQLite.
//
// A task records the input/output paths, the serialized processing options,
// and the pipeline status as the controller advances through its stages.
// Progress columns (stage, percent, message) mirror what the event surface
// reports so CLI listings can show in-flight work.
package task
