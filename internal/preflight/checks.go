package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"hdvapourize/internal/config"
	"hdvapourize/internal/deps"
	"hdvapourize/internal/services/vspipe"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the executables and the processing script.
// Both `run` and `check` use it so the requirement list lives in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Required for rewrap and encode"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Required for format analysis"},
		{Name: "vspipe", Command: cfg.Tools.VSPipe, Description: "Required for VapourSynth processing"},
	}
	if cfg.Processing.UseGPU != config.GPUOff {
		requirements = append(requirements, deps.Requirement{
			Name:        "nvidia-smi",
			Command:     cfg.Tools.NvidiaSMI,
			Description: "Detects CUDA-capable GPUs",
			Optional:    cfg.Processing.UseGPU == config.GPUAuto,
		})
	}
	results := deps.CheckBinaries(requirements)

	results = append(results, deps.CheckFile("Processing script", cfg.Tools.Script, "VapourSynth .vpy script"))
	if results[0].Available {
		results = append(results, deps.CheckEncoder(ctx, cfg.Tools.FFmpeg, "prores_ks"))
	}
	if results[2].Available {
		st := deps.Status{Name: "VapourSynth core", Command: cfg.Tools.VSPipe, Description: "vspipe --version"}
		if line, err := deps.Version(ctx, cfg.Tools.VSPipe, "--version"); err != nil {
			st.Detail = err.Error()
		} else {
			st.Available = true
			st.Detail = line
		}
		results = append(results, st)
	}
	return results
}

// CheckGPU reports the resolved GPU mode. It fails only when use_gpu is
// "on" and no GPU is visible.
func CheckGPU(ctx context.Context, cfg *config.Config) Result {
	const name = "GPU"
	switch cfg.Processing.UseGPU {
	case config.GPUOff:
		return Result{Name: name, Passed: true, Optional: true, Detail: "disabled"}
	case config.GPUOn:
		if vspipe.DetectGPU(ctx, cfg.Tools.NvidiaSMI) {
			return Result{Name: name, Passed: true, Detail: "CUDA device detected"}
		}
		return Result{Name: name, Detail: "use_gpu = \"on\" but nvidia-smi lists no GPU"}
	}
	if vspipe.ResolveGPU(ctx, cfg.Processing.UseGPU, cfg.Tools.NvidiaSMI) {
		return Result{Name: name, Passed: true, Optional: true, Detail: "CUDA device detected"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "no GPU detected, using CPU filters"}
}
