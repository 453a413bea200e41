// Package progress combines per-job stage progress into a batch completion
// fraction and an ETA. The Aggregator is the only state the batch workers
// share; everything it hands out is a copy.
package progress
