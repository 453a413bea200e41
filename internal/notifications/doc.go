// Package notifications pushes run milestones to ntfy.
//
// NewService returns a no-op implementation when notifications.ntfy_topic is
// empty, so callers never need to check whether notifications are enabled.
// Delivery failures are returned to the caller, which logs them; a failed
// push never changes a run's outcome.
package notifications
