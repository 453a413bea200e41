package vspipe

import (
	"regexp"

	"hdvapourize/internal/runner"
)

// Signatures identify failures caused by the VapourSynth installation rather
// than the input file.
var Signatures = []runner.Signature{
	{Pattern: regexp.MustCompile(`No module named '?([\w.]+)'?`), Reason: "python module missing"},
	{Pattern: regexp.MustCompile(`Failed to evaluate the script`), Reason: "script evaluation failed"},
	{Pattern: regexp.MustCompile(`There is no function named (\w+)`), Reason: "vapoursynth plugin function missing"},
	{Pattern: regexp.MustCompile(`No attribute with the name (\w+) exists`), Reason: "vapoursynth plugin not loaded"},
	{Pattern: regexp.MustCompile(`(?i)Failed to initialize VapourSynth`), Reason: "vapoursynth core unavailable"},
	{Pattern: regexp.MustCompile(`(?i)CUDA error|no CUDA-capable device`), Reason: "gpu unavailable"},
}
