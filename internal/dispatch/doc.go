// Package dispatch runs batched work across a bounded worker pool.
//
// Items are partitioned into fixed-size batches processed concurrently.
// Results merge back in input order regardless of completion order, progress
// is reported monotonically, a transient batch failure is retried a
// configured number of times, and the first unrecoverable failure cancels
// the in-flight siblings (fail fast, no partial success).
package dispatch
