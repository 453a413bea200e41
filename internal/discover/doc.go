// Package discover turns a file or directory argument into the ordered list
// of inputs for a batch and assigns each one a unique output path under the
// output root.
package discover
