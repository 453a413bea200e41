package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hdvapourize/internal/deps"
	"hdvapourize/internal/notifications"
	"hdvapourize/internal/preflight"
	"hdvapourize/internal/workdir"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify tools, the processing script and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configDetail := ctx.configPath
			if configDetail == "" {
				configDetail = "defaults"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
			fmt.Fprintln(out, renderStatusLine("Concurrency", statusInfo, fmt.Sprintf("%d", cfg.EffectiveConcurrency()), colorize))
			fmt.Fprintln(out, renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize))
			fmt.Fprintln(out)

			if err := cfg.EnsureDirectories(); err != nil {
				fmt.Fprintln(out, renderStatusLine("Directories", statusError, err.Error(), colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range preflightLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			if version, err := deps.Version(cmd.Context(), cfg.Tools.FFmpeg, "-version"); err == nil {
				fmt.Fprintln(out, renderStatusLine("FFmpeg version", statusInfo, version, colorize))
			}
			if dirs, err := workdir.ListDirectories(cfg.Paths.TempDir); err == nil && len(dirs) > 0 {
				detail := fmt.Sprintf("%d leftover run dir(s), %s", len(dirs), humanize.IBytes(uint64(workdir.TotalSize(dirs))))
				fmt.Fprintln(out, renderStatusLine("Work directory", statusWarn, detail, colorize))
			}
			if sendTest {
				if cfg.Notifications.NtfyTopic == "" {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusWarn, "notifications.ntfy_topic is not set", colorize))
				} else if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusError, err.Error(), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusOK, "test message sent", colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				fmt.Fprintf(out, "\n%d required check(s) failed\n", len(failed))
				return &exitCodeError{code: 1}
			}
			fmt.Fprintln(out, "\nReady to convert")
			return nil
		},
	}

	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification to notifications.ntfy_topic")
	return cmd
}
