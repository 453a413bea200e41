package preflight

import (
	"context"

	"hdvapourize/internal/config"
	"hdvapourize/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.TempDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	for _, st := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:     st.Name,
			Passed:   st.Available,
			Detail:   statusDetail(st),
			Optional: st.Optional,
		})
	}
	results = append(results, CheckGPU(ctx, cfg))
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

func statusDetail(st deps.Status) string {
	command, detail := st.Command, st.Detail
	if st.Path != "" {
		command = st.Path
	}
	switch {
	case detail == "":
		return command
	case command == "":
		return detail
	}
	return command + " (" + detail + ")"
}
