// Package analysis implements the analyze stage: it probes the input,
// builds and classifies its FormatProfile, applies the unclassified-input
// policy and the skip-existing rule, and fixes the job's frame total.
package analysis
