package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hdvapourize/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var path string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the newest run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			target := strings.TrimSpace(path)
			if target == "" {
				target, err = logs.Latest(cfg.Paths.LogDir)
				if errors.Is(err, logs.ErrNoRunLogs) {
					fmt.Fprintln(cmd.OutOrStdout(), "No run logs yet")
					return nil
				}
				if err != nil {
					return err
				}
			}

			tail, offset, err := logs.Last(target, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(followCtx, target, offset, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVar(&path, "file", "", "Read this log file instead of the newest run log")
	return cmd
}
