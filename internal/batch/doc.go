// Package batch runs many jobs through the pipeline with bounded
// concurrency and assembles the run report.
//
// The Scheduler hands each job to a worker slot from an errgroup with a
// fixed limit. A job's outcome is recorded on the job itself, so one
// failure never cancels its siblings. Cancelling the context stops new
// jobs from starting; those are marked Cancelled without running.
package batch
