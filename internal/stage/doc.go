// Package stage defines the contract between the pipeline and the handlers
// that implement analyze, rewrap, process and finalize.
package stage
