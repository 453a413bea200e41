// Package preflight provides readiness checks for the external tools and
// filesystem paths a batch run depends on.
//
// These checks run in two contexts:
//   - `hdvapourize run` calls RunAll before scheduling any job. If a
//     required check fails, the run aborts before hours of work are queued.
//   - `hdvapourize check` prints every result, including optional ones.
package preflight
