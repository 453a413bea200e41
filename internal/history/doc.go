// Package history persists finished batch reports in a SQLite ledger.
//
// The ledger is optional. When history.enabled is set, the orchestrator
// saves each report after the batch completes and the `history` command
// lists or inspects past runs. Nothing in a run depends on earlier runs.
package history
