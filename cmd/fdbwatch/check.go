package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/fdbwatch/pkg/archive"
)

// errArchiveIncomplete signals a completed check whose findings fail it.
var errArchiveIncomplete = errors.New("archive check failed")

func (a *app) checkCommand() *cobra.Command {
	var (
		output string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "check <model>",
		Short: "Check the latest run of a model and its retention window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output %q (must be text or json)", output)
			}

			now := a.now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t.UTC()
			}

			checker, _, err := a.checker()
			if err != nil {
				return err
			}

			report, err := checker.Check(cmd.Context(), args[0], now)
			if err != nil {
				return err
			}

			a.logger.Info("archive checked",
				"model", report.Model,
				"run", report.Label,
				"status", report.Summary.String(),
				"history", len(report.History),
			)

			if err := writeReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}

			if !report.OK() {
				a.logger.Warn("archive incomplete",
					"model", report.Model,
					"run", report.Label,
					"status", report.Summary.String(),
					"missing_runs", report.MissingRuns(),
					"failed_files", report.FailedFiles,
				)
				return fmt.Errorf("%s run %s: %w", report.Model, report.Label, errArchiveIncomplete)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")
	cmd.Flags().StringVar(&at, "at", "", "Check as of this RFC3339 time instead of now")
	return cmd
}

func writeReport(w io.Writer, r *archive.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s run %s (%s): %s\n", r.Model, r.Label, r.RunStart.Format("2006-01-02 15:04 MST"), r.Summary)

	for _, ps := range r.Latest {
		fmt.Fprintf(&b, "\nvariant %s: %d/%d present\n", variantName(ps.Suffix), ps.Matrix.Count(), ps.Matrix.Members()*ps.Matrix.Steps())
		for member, row := range ps.Matrix {
			fmt.Fprintf(&b, "  member %3d  ", member)
			for _, cell := range row {
				if cell == archive.Present {
					b.WriteByte('#')
				} else {
					b.WriteByte('.')
				}
			}
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nhistory:\n")
	for _, h := range r.History {
		fmt.Fprintf(&b, "  %s  %s\n", h.Label, h.Status)
	}

	if len(r.FailedFiles) > 0 {
		fmt.Fprintf(&b, "\nfailed files (%d):\n", len(r.FailedFiles))
		for _, f := range r.FailedFiles {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func variantName(suffix string) string {
	if suffix == "" {
		return "-"
	}
	return suffix
}
