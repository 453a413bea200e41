// Package job models one input file's trip through the pipeline: its
// lifecycle state, the ordered stage results, and the artifacts each stage
// hands to the next.
//
// A Job is owned by the goroutine running its pipeline; nothing else mutates
// it until it reaches a terminal state.
package job
