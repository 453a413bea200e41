package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/orchestrator"
	"hdvapourize/internal/preflight"
	"hdvapourize/internal/progress"
	"hdvapourize/internal/services"
	"hdvapourize/internal/statusapi"
)

const defaultTestFrames = 200

type runOptions struct {
	input         string
	output        string
	batch         bool
	recursive     bool
	testMode      bool
	testFrames    int
	concurrency   int
	statusAddr    string
	retain        bool
	unclassified  string
	noProgress    bool
	jsonOutput    bool
	skipPreflight bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Convert a file, or with --batch a directory of files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.input != "" && opts.input != args[0] {
					return fmt.Errorf("input given both as argument and --input")
				}
				opts.input = args[0]
			}
			base, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg, err := applyRunOverrides(cmd, base, opts)
			if err != nil {
				return err
			}
			return executeRun(cmd, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "Input file, or directory with --batch")
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory (default paths.output_dir)")
	flags.BoolVar(&opts.batch, "batch", false, "Treat the input as a directory of files")
	flags.BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories in batch mode")
	flags.BoolVar(&opts.testMode, "test-mode", false, "Process only the first --test-frames frames of each file")
	flags.IntVar(&opts.testFrames, "test-frames", defaultTestFrames, "Frame ceiling in test mode")
	flags.IntVarP(&opts.concurrency, "concurrency", "j", 0, "Files processed in parallel (default batch.concurrency)")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "Serve live progress over HTTP on this address")
	flags.BoolVar(&opts.retain, "retain-intermediates", false, "Keep per-job work directories")
	flags.StringVar(&opts.unclassified, "unclassified", "", "Policy for unrecognized formats: skip or best_effort")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
	flags.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Start without checking tools and directories")
	return cmd
}

// applyRunOverrides returns a copy of base with command-line flags applied
// and validated.
func applyRunOverrides(cmd *cobra.Command, base *config.Config, opts runOptions) (*config.Config, error) {
	cfg := *base
	cfg.Batch.Extensions = append([]string(nil), base.Batch.Extensions...)
	flags := cmd.Flags()

	if strings.TrimSpace(opts.input) == "" {
		return nil, fmt.Errorf("an input path is required (argument or --input)")
	}
	if flags.Changed("recursive") {
		cfg.Batch.Recursive = opts.recursive
	}
	if flags.Changed("test-mode") || flags.Changed("test-frames") {
		cfg.TestMode.Enabled = opts.testMode || flags.Changed("test-frames")
		cfg.TestMode.Frames = opts.testFrames
	}
	if flags.Changed("concurrency") {
		cfg.Batch.Concurrency = opts.concurrency
	}
	if flags.Changed("retain-intermediates") {
		cfg.Batch.RetainIntermediates = opts.retain
	}
	if flags.Changed("unclassified") {
		cfg.Batch.UnclassifiedPolicy = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(opts.unclassified)), "-", "_")
	}
	if flags.Changed("status-addr") {
		cfg.Status.Bind = strings.TrimSpace(opts.statusAddr)
	}
	if strings.TrimSpace(opts.output) != "" {
		out, err := config.ExpandPath(strings.TrimSpace(opts.output))
		if err != nil {
			return nil, fmt.Errorf("resolve output: %w", err)
		}
		cfg.Paths.OutputDir = out
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkInputMode(opts.input, opts.batch); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkInputMode requires --batch for directories and a file otherwise. A
// missing input is left for discovery to report.
func checkInputMode(input string, batch bool) error {
	info, err := os.Stat(input)
	if err != nil {
		return nil
	}
	switch {
	case info.IsDir() && !batch:
		return fmt.Errorf("%s is a directory; pass --batch to convert every file in it", input)
	case !info.IsDir() && batch:
		return fmt.Errorf("--batch expects a directory, %s is a file", input)
	}
	return nil
}

func executeRun(cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	started := time.Now()
	runLog := logging.RunLogPath(cfg.Paths.LogDir, started)
	logger, err := logging.NewFromConfig(cfg, runLog)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, runLog)

	if !opts.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
			out := cmd.ErrOrStderr()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, "Preflight failed:")
			for _, r := range failed {
				fmt.Fprintln(out, renderStatusLine(r.Name, statusError, r.Detail, colorize))
			}
			return &exitCodeError{
				code: 1,
				err:  services.Wrap(services.ErrEnvironment, "preflight", "run", "required tools or directories are unavailable (see `hdvapourize check`)", nil),
			}
		}
	}

	agg := progress.NewAggregator(orchestrator.Weights(cfg))

	var status *statusapi.Server
	if cfg.Status.Bind != "" {
		status = statusapi.New(cfg.Status.Bind, agg, logger)
		status.SetRunLog(runLog)
		if err := status.Start(signalCtx); err != nil {
			return err
		}
		defer status.Stop()
	}

	display := newProgressDisplay(cmd.OutOrStdout(), !opts.noProgress && !opts.jsonOutput)
	agg.Subscribe(display.Update)

	input, err := filepath.Abs(opts.input)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	report, err := orchestrator.Run(signalCtx, input, cfg.Paths.OutputDir, orchestrator.Options{
		Config:   cfg,
		Logger:   logger,
		Progress: agg,
		OnPlanned: func(runID string, jobs []*job.Job) {
			if status != nil {
				status.SetRunID(runID)
			}
			display.Start(len(jobs))
		},
	})
	display.Finish()
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderReport(report, runLog))
	}

	if interrupted(cmd.Context(), signalCtx) {
		return &exitCodeError{code: exitInterrupted}
	}
	if code := report.ExitCode(); code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// interrupted reports whether a signal, rather than the caller, ended ctx.
func interrupted(parent, signalCtx context.Context) bool {
	return signalCtx.Err() != nil && parent.Err() == nil
}
