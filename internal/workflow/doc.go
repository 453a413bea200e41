// Package workflow drives a single job through the ordered stages.
//
// A Pipeline holds the analyze, rewrap, process and finalize handlers and
// runs them strictly in sequence for one job. Each stage gets its own
// request ID, a running state on the job, and exactly one recorded
// StageResult. The first error ends the job in a terminal state:
// cancellations become Cancelled, unclassified sources become Skipped when
// policy says so, and everything else becomes Failed. Handler panics are
// recovered into failures.
//
// When the job ends the pipeline removes its partial output unless the job
// succeeded, and removes the job's work directory unless intermediates are
// retained.
package workflow
