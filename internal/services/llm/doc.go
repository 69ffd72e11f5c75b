// Package llm wraps OpenAI-compatible chat completion endpoints.
//
// The client retries transient failures (timeouts, 429s, 5xx) with
// exponential backoff and honours Retry-After. Errors surface through the
// services sentinel markers so callers can tell configuration problems,
// transient faults, and permanent provider failures apart.
package llm
