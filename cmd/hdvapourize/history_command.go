package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or show one run's jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.Paths.HistoryDB); errors.Is(err, os.ErrNotExist) {
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), []history.RunRecord{})
				}
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if pruneDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s) older than %s\n", removed, humanize.Time(cutoff))
				return nil
			}

			if len(args) == 1 {
				rec, jobs, err := store.Run(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), struct {
						Run  history.RunRecord   `json:"run"`
						Jobs []batch.JobSummary `json:"jobs"`
					}{rec, jobs})
				}
				fmt.Fprint(out, renderRunDetail(rec))
				if len(jobs) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderJobTable(jobs))
				}
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.RunRecord{}
				}
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunList(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete runs older than this many days instead of listing")
	return cmd
}

func renderRunList(runs []history.RunRecord) string {
	headers := []string{"Run", "Started", "Duration", "OK", "Failed", "Skipped", "Cancelled", "Frames", "Input"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		id := r.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		if r.TestMode {
			id += " (test)"
		}
		rows = append(rows, []string{
			id,
			humanize.Time(r.StartedAt),
			formatDuration(r.Duration),
			fmt.Sprint(r.Succeeded),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.Skipped),
			fmt.Sprint(r.Cancelled),
			humanize.Comma(r.FramesProcessed),
			r.Input,
		})
	}
	return renderTable(headers, rows, aligns)
}

func renderRunDetail(r history.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "  input:    %s\n", r.Input)
	fmt.Fprintf(&b, "  output:   %s\n", r.Output)
	fmt.Fprintf(&b, "  started:  %s (%s)\n", r.StartedAt.Local().Format(time.DateTime), humanize.Time(r.StartedAt))
	fmt.Fprintf(&b, "  duration: %s\n", formatDuration(r.Duration))
	fmt.Fprintf(&b, "  jobs:     %d succeeded, %d failed, %d skipped, %d cancelled\n",
		r.Succeeded, r.Failed, r.Skipped, r.Cancelled)
	fmt.Fprintf(&b, "  frames:   %s at %s fps\n", humanize.Comma(r.FramesProcessed), humanize.FtoaWithDigits(r.FramesPerSecond, 2))
	fmt.Fprintf(&b, "  test:     %s\n", yesNo(r.TestMode))
	return b.String()
}
