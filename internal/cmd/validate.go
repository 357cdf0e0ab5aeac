package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/validator"
	"github.com/spf13/cobra"
)

// NewValidateCommand builds `taskdaemon validate`: a one-shot run of the
// Validator Pipeline (C6) against a project directory, printing the
// validator_results.json a spec's auto-verify chain would otherwise produce.
func NewValidateCommand() *cobra.Command {
	var projectDir string
	var specDir string
	var outPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the validator pipeline against a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectDir == "" {
				return fmt.Errorf("validate: --project-dir is required")
			}
			abs, err := filepath.Abs(projectDir)
			if err != nil {
				return fmt.Errorf("validate: resolve project dir: %w", err)
			}

			vc := validator.Context{
				ProjectDir:   abs,
				SpecDir:      specDir,
				Capabilities: validator.DetectCapabilities(abs),
				Runner:       &validator.ShellCommandRunner{WorkDir: abs},
			}

			results := validator.DefaultPipeline().Run(context.Background(), vc)

			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("validate: marshal results: %w", err)
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0644); err != nil {
					return fmt.Errorf("validate: write %s: %w", outPath, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			for _, r := range results {
				if !r.Passed {
					return fmt.Errorf("validate: %s failed", r.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", "", "project directory to validate (required)")
	cmd.Flags().StringVar(&specDir, "spec-dir", "", "spec directory being validated, if any")
	cmd.Flags().StringVar(&outPath, "out", "", "write validator_results.json to this path")
	return cmd
}
