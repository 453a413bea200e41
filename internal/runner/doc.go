// Package runner owns the lifecycle of the external processes a stage
// launches.
//
// Run starts a command (optionally piping its stdout into a second command),
// streams every output line through a tool-specific Parser, and reports
// normalized frame progress. It enforces the test-mode frame ceiling by
// interrupting the producing process, applies per-stage timeouts, and reacts
// to context cancellation by signalling the process groups and killing them
// once the grace period lapses.
//
// Every failure comes back as an error tagged with one of the services
// markers (ErrToolFailure, ErrEnvironment, ErrTimeout, ErrCancelled) together
// with a Result that carries the exit code and a bounded diagnostic tail.
package runner
