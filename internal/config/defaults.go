package config

import "runtime"

const (
	defaultOutputDir          = "~/Videos/hdvapourize"
	defaultTempDir            = "~/.cache/hdvapourize/work"
	defaultLogDir             = "~/.local/share/hdvapourize/logs"
	defaultHistoryDB          = "~/.local/share/hdvapourize/history.db"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultVSPipeBinary       = "vspipe"
	defaultNvidiaSMIBinary    = "nvidia-smi"
	defaultScriptPath         = "~/.config/hdvapourize/process.vpy"
	defaultUnclassifiedPolicy = UnclassifiedSkip
	defaultTestFrames         = 200
	defaultAnalyzeTimeout     = 120
	defaultRewrapTimeout      = 3600
	defaultProcessTimeout     = 72 * 3600
	defaultFinalizeTimeout    = 600
	defaultStallTimeout       = 300
	defaultGraceSeconds       = 15
	defaultDeinterlacePreset  = "Placebo"
	defaultUpscaleFactor      = 2
	defaultColorSpace         = ColorSpaceDCIP3
	defaultOutputFormat       = "YUV422P10"
	defaultSourceFilter       = "auto"
	defaultNNEDI3NSize        = 4
	defaultNNEDI3NNS          = 4
	defaultNNEDI3Qual         = 2
	defaultThreads            = 10
	defaultUseGPU             = GPUAuto
	defaultOutputSuffix       = "_prores"
	defaultOutputContainer    = ".mov"
	defaultMinOutputBytes     = 1 << 20
	defaultAudioCodec         = "pcm_s24le"
	defaultStaleWorkHours     = 48
	defaultNotifyTimeout      = 10
)

// Unclassified input policies.
const (
	UnclassifiedSkip       = "skip"
	UnclassifiedBestEffort = "best_effort"
)

// Target color spaces understood by the processing script.
const (
	ColorSpaceDCIP3 = "dci-p3"
	ColorSpaceBT709 = "bt709"
)

// GPU usage modes.
const (
	GPUAuto = "auto"
	GPUOn   = "on"
	GPUOff  = "off"
)

var defaultExtensions = []string{
	".avi", ".mov", ".mp4", ".mkv", ".mpg", ".mpeg",
	".ts", ".mts", ".m2ts", ".mxf", ".dv", ".hdv",
}

var deinterlacePresets = []string{
	"Draft", "Ultra Fast", "Super Fast", "Very Fast", "Faster", "Fast",
	"Medium", "Slow", "Slower", "Very Slow", "Placebo",
}

// DefaultConcurrency returns the worker limit used when batch.concurrency is
// unset. The processing stage saturates several cores per job, so the limit
// scales with a quarter of the available CPUs.
func DefaultConcurrency() int {
	n := runtime.NumCPU() / 4
	if n < 1 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			TempDir:   defaultTempDir,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Tools: Tools{
			FFmpeg:    defaultFFmpegBinary,
			FFprobe:   defaultFFprobeBinary,
			VSPipe:    defaultVSPipeBinary,
			Script:    defaultScriptPath,
			NvidiaSMI: defaultNvidiaSMIBinary,
		},
		Batch: Batch{
			Concurrency:        0,
			SkipExisting:       true,
			UnclassifiedPolicy: defaultUnclassifiedPolicy,
			StaleWorkHours:     defaultStaleWorkHours,
			Extensions:         append([]string(nil), defaultExtensions...),
		},
		TestMode: TestMode{
			Frames: defaultTestFrames,
		},
		Timeouts: Timeouts{
			AnalyzeSeconds:  defaultAnalyzeTimeout,
			RewrapSeconds:   defaultRewrapTimeout,
			ProcessSeconds:  defaultProcessTimeout,
			FinalizeSeconds: defaultFinalizeTimeout,
			StallSeconds:    defaultStallTimeout,
			GraceSeconds:    defaultGraceSeconds,
		},
		Progress: Progress{
			AnalyzeWeight:  0.02,
			RewrapWeight:   0.08,
			ProcessWeight:  0.85,
			FinalizeWeight: 0.05,
		},
		Processing: Processing{
			DeinterlacePreset: defaultDeinterlacePreset,
			UpscaleFactor:     defaultUpscaleFactor,
			ColorSpace:        defaultColorSpace,
			OutputFormat:      defaultOutputFormat,
			SourceFilter:      defaultSourceFilter,
			NNEDI3NSize:       defaultNNEDI3NSize,
			NNEDI3NNS:         defaultNNEDI3NNS,
			NNEDI3Qual:        defaultNNEDI3Qual,
			Threads:           defaultThreads,
			UseGPU:            defaultUseGPU,
			ChromaCleanup:     true,
		},
		Output: Output{
			Suffix:     defaultOutputSuffix,
			Container:  defaultOutputContainer,
			MinBytes:   defaultMinOutputBytes,
			AudioCodec: defaultAudioCodec,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
			JobFailures:           true,
		},
	}
}
