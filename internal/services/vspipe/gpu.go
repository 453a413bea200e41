package vspipe

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const gpuProbeTimeout = 5 * time.Second

// DetectGPU reports whether nvidia-smi lists at least one GPU. A missing or
// failing binary means no GPU.
func DetectGPU(ctx context.Context, nvidiaSMI string) bool {
	if strings.TrimSpace(nvidiaSMI) == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, gpuProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, nvidiaSMI, "-L").Output() //nolint:gosec
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			return true
		}
	}
	return false
}

// ResolveGPU applies the configured mode ("auto", "on", "off").
func ResolveGPU(ctx context.Context, mode, nvidiaSMI string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		return true
	case "off":
		return false
	default:
		return DetectGPU(ctx, nvidiaSMI)
	}
}
