// Package orchestrator is the single entry point for a batch conversion.
//
// Run discovers the inputs, assigns collision-free output paths, locks the
// output root against concurrent invocations, and hands one job per file to
// the batch scheduler. When the run ledger is enabled the finished report is
// saved to history.
package orchestrator
