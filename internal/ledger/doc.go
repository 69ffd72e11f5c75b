// Package ledger tracks daily usage of the bundled shared LLM endpoint.
//
// Counts are kept per service and calendar day in SQLite. Increment is a
// single atomic check-and-increment statement, so concurrent callers can
// never push a day's count past the configured limit. CheckAvailable is a
// read-only preflight that reserves nothing.
package ledger
