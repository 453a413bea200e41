package stage

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Health is the outcome of a handler's readiness probe.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// RequireTools reports the first external binary in tools that cannot be
// resolved on PATH. Empty entries are treated as unconfigured.
func RequireTools(name string, tools ...string) Health {
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			return Unhealthy(name, "tool not configured")
		}
		if _, err := exec.LookPath(tool); err != nil {
			return Unhealthy(name, fmt.Sprintf("%s not found: %v", tool, err))
		}
	}
	return Healthy(name)
}

// RequireFile checks that path names a readable regular file.
func RequireFile(name, label, path string) Health {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return Unhealthy(name, fmt.Sprintf("%s not readable: %v", label, err))
	case info.IsDir():
		return Unhealthy(name, fmt.Sprintf("%s %s is a directory", label, path))
	}
	return Healthy(name)
}

// Combine returns the first unready Health, or a ready one for name.
func Combine(name string, checks ...Health) Health {
	for _, h := range checks {
		if !h.Ready {
			h.Name = name
			return h
		}
	}
	return Healthy(name)
}
