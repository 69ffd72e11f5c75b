// Package notifications publishes task lifecycle events to ntfy.
//
// The service is optional: without a configured topic a noop implementation
// is returned, so callers never branch on whether notifications are enabled.
package notifications
