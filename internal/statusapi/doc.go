// Package statusapi serves live batch progress over HTTP while a run is
// active. It is enabled by status.bind or `run --status-addr` and only
// ever reads from the progress aggregator.
package statusapi
