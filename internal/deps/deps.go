package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external executable a conversion run invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the probe result for one Requirement. Path holds the
// resolved executable when Available.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement on PATH, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = resolve(req)
	}
	return results
}

func resolve(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Path = path
	st.Available = true
	return st
}
