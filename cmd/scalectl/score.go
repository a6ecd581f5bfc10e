package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
	"github.com/clinimetric-scale-server/internal/repository"
	"github.com/clinimetric-scale-server/internal/service"
)

type scoreFlags struct {
	scalePath     string
	responsesPath string
}

func newScoreCmd(logger func() *logrus.Logger) *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score --scale <file> --responses <file>",
		Short: "Score a response file against a scale definition and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), f, logger())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.scalePath, "scale", "", "Scale definition file (JSON or YAML)")
	flags.StringVar(&f.responsesPath, "responses", "", "Response file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("scale")
	_ = cmd.MarkFlagRequired("responses")

	return cmd
}

func runScore(ctx context.Context, out io.Writer, f *scoreFlags, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(f.scalePath)
	if err != nil {
		return exitError(3, "failed to read %s: %v", f.scalePath, err)
	}
	scale, err := ingest.DecodeScale(data, ingest.DetectFormat(f.scalePath))
	if err != nil {
		return exitError(3, "failed to parse %s: %v", f.scalePath, err)
	}

	data, err = os.ReadFile(f.responsesPath)
	if err != nil {
		return exitError(3, "failed to read %s: %v", f.responsesPath, err)
	}
	sub, err := ingest.DecodeSubmission(data, ingest.DetectFormat(f.responsesPath))
	if err != nil {
		return exitError(3, "failed to parse %s: %v", f.responsesPath, err)
	}

	validator := service.NewScaleDefinitionValidator(logger, nil)
	catalog := service.NewScaleCatalog(logger, repository.NewMemoryScaleRepository(logger), validator,
		service.NewAssessmentOrchestrator(logger))

	result, report, err := catalog.PreviewScore(ctx, scale, sub.Responses)
	if err != nil {
		if errors.Is(err, domain.ErrValidationFailed) && report != nil {
			for _, issue := range report.Errors {
				fmt.Fprintf(os.Stderr, "error %s\n", describeIssue(issue))
			}
			return exitError(2, "%s failed validation with %d error(s)", scale.ID, len(report.Errors))
		}
		return exitError(1, "failed to score assessment: %v", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
