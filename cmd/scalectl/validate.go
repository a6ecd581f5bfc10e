package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
	"github.com/clinimetric-scale-server/internal/service"
)

type validateFlags struct {
	format      string
	concurrency int
}

func newValidateCmd(logger func() *logrus.Logger) *cobra.Command {
	f := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate scale definition files and print a batch summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args, f, logger())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "text", "Output format: text or json")
	flags.IntVar(&f.concurrency, "concurrency", 4, "Definitions validated in parallel")

	return cmd
}

func runValidate(ctx context.Context, out io.Writer, paths []string, f *validateFlags, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch f.format {
	case "json", "text":
	default:
		return exitError(3, "unknown format %q", f.format)
	}

	var inputs []service.BatchInput
	for _, path := range paths {
		loaded := loadInputs(path)
		logger.WithFields(logrus.Fields{"file": path, "definitions": len(loaded)}).Debug("Loaded definitions")
		inputs = append(inputs, loaded...)
	}

	batch := service.NewBatchValidator(logger, service.NewScaleDefinitionValidator(logger, nil), f.concurrency)
	report := batch.ValidateInputs(ctx, inputs)

	switch f.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	case "text":
		writeBatchText(out, report)
	}

	if report.Invalid > 0 {
		return exitError(2, "%d of %d definitions failed validation", report.Invalid, report.Total)
	}
	return nil
}

func writeBatchText(out io.Writer, report *domain.BatchReport) {
	for _, r := range report.Reports {
		state := "valid"
		if !r.IsValid {
			state = "INVALID"
		}
		name := r.ScaleID
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "%-20s %-8s %d error(s), %d warning(s)  %s\n", name, state, len(r.Errors), len(r.Warnings), r.Source)
		for _, issue := range r.Errors {
			fmt.Fprintf(out, "  error   %s\n", describeIssue(issue))
		}
		for _, issue := range r.Warnings {
			fmt.Fprintf(out, "  warning %s\n", describeIssue(issue))
		}
	}
	fmt.Fprintf(out, "Summary: %d scale(s), %d valid, %d invalid (%.1f%% valid)\n",
		report.Total, report.Valid, report.Invalid, report.SuccessRate)
}

func describeIssue(issue domain.ValidationIssue) string {
	where := ""
	switch {
	case issue.ItemNumber > 0:
		where = fmt.Sprintf(" [item %d]", issue.ItemNumber)
	case issue.SubscaleID != "":
		where = fmt.Sprintf(" [subscale %s]", issue.SubscaleID)
	case issue.Range != "":
		where = fmt.Sprintf(" [range %s]", issue.Range)
	}
	return fmt.Sprintf("%s%s: %s", issue.Type, where, issue.Message)
}

// loadInputs turns one file into batch inputs. A file that cannot be read or
// parsed becomes a single failed input so the rest of the batch still runs.
func loadInputs(path string) []service.BatchInput {
	data, err := os.ReadFile(path)
	if err != nil {
		return []service.BatchInput{{Source: path, Err: fmt.Errorf("failed to read %s: %w", path, err)}}
	}
	entries, err := ingest.DecodeScaleEntries(data, ingest.DetectFormat(path))
	if err != nil {
		return []service.BatchInput{{Source: path, Err: fmt.Errorf("failed to parse %s: %w", path, err)}}
	}
	inputs := make([]service.BatchInput, len(entries))
	for i, e := range entries {
		inputs[i] = service.BatchInput{Source: path + e.Source, ID: e.ID, Scale: e.Scale, Err: e.Err}
	}
	return inputs
}

func loadScales(path string) ([]*domain.Scale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	scales, err := ingest.DecodeScales(data, ingest.DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return scales, nil
}
