package processing

import (
	"strconv"

	"hdvapourize/internal/config"
	"hdvapourize/internal/media/profile"
)

// ScriptParams renders the script arguments for one job. Every value is a
// string because vspipe passes them through as such.
func ScriptParams(input string, prof profile.FormatProfile, proc config.Processing, gpu bool) map[string]string {
	params := map[string]string{
		"input_file":         input,
		"source_class":       string(prof.Class),
		"width":              strconv.Itoa(prof.Width),
		"height":             strconv.Itoa(prof.Height),
		"fps_num":            strconv.Itoa(prof.FrameRateNum),
		"fps_den":            strconv.Itoa(prof.FrameRateDen),
		"interlaced":         flag(prof.Interlaced()),
		"tff":                flag(prof.TopFieldFirst()),
		"deinterlace_preset": proc.DeinterlacePreset,
		"upscale_factor":     strconv.Itoa(proc.UpscaleFactor),
		"color_space":        proc.ColorSpace,
		"output_format":      proc.OutputFormat,
		"source_filter":      proc.SourceFilter,
		"nnedi3_nsize":       strconv.Itoa(proc.NNEDI3NSize),
		"nnedi3_nns":         strconv.Itoa(proc.NNEDI3NNS),
		"nnedi3_qual":        strconv.Itoa(proc.NNEDI3Qual),
		"threads":            strconv.Itoa(proc.Threads),
		"use_gpu":            flag(gpu),
		"chroma_cleanup":     flag(proc.ChromaCleanup),
	}
	if prof.PixelAspect != "" {
		params["sar"] = prof.PixelAspect
	}
	return params
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
