// Package finalize implements the last stage: it verifies the partial
// deliverable (size, duration and color tags) and moves it into place
// under its final name.
package finalize
