// Package rewrap implements the rewrap stage, which converts the source
// into an intra-frame ProRes master in the job's work directory.
package rewrap
