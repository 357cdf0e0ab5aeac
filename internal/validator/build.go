package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

const buildCommandTimeout = 300 * time.Second

// BuildValidator runs lint/build/test commands detected from
// project_index.json. It always runs first and is not capability-gated.
type BuildValidator struct{}

func (BuildValidator) ID() string                 { return "build" }
func (BuildValidator) Description() string        { return "Static analysis, compilation, and test validation" }
func (BuildValidator) CapabilityTrigger() string   { return "" }

// Validate runs lint, build, then test in that order (§4.6 Build validator).
// Lint and test are blocking; build is informational, since the browser
// validator starts its own dev server rather than relying on a production
// build artifact.
func (BuildValidator) Validate(ctx context.Context, vc Context) models.ValidatorResult {
	commands := getBuildCommands(vc.ProjectDir)
	if commands == nil {
		return models.ValidatorResult{
			ID:             "build",
			Passed:         true,
			ReportMarkdown: "## Build Validation\n\n- No build system detected, skipping build validation\n",
			Metadata:       map[string]interface{}{"skipped": true, "reason": "no build system detected"},
		}
	}

	type run struct {
		kind    string
		command string
		blocking bool
	}
	runs := []run{
		{"lint", commands.Lint, true},
		{"build", commands.Build, false},
		{"test", commands.Test, true},
	}

	report := "## Build Validation\n\n"
	var issues []models.Issue
	ran := map[string]bool{}
	kindPassed := map[string]bool{}
	allBlockingPassed := true

	for _, r := range runs {
		if r.command == "" {
			continue
		}
		ran[r.kind] = true

		runCtx, cancel := context.WithTimeout(ctx, buildCommandTimeout)
		output, err := vc.Runner.Run(runCtx, r.command)
		cancel()

		if err == nil {
			kindPassed[r.kind] = true
			report += fmt.Sprintf("- %s: PASSED\n", r.kind)
			continue
		}

		kindPassed[r.kind] = false
		if r.blocking {
			allBlockingPassed = false
		}
		suffix := ""
		if !r.blocking {
			suffix = " (non-blocking)"
		}
		report += fmt.Sprintf("- %s: FAILED%s\n", r.kind, suffix)

		severity := models.SeverityMinor
		if r.blocking {
			severity = models.SeverityMajor
		}
		issues = append(issues, models.Issue{
			Severity:    severity,
			Description: fmt.Sprintf("%s command failed: %s", r.kind, truncate(output, 200)),
		})
	}

	passed := true
	if ran["lint"] || ran["test"] {
		passed = allBlockingPassed
	}

	// Metadata surfaces per-kind outcomes so the Scorer (§4.10) can read
	// build/lint/test sub-results straight out of validator_results.json
	// instead of re-running anything.
	metadata := map[string]interface{}{}
	if ran["lint"] {
		metadata["lint_passed"] = kindPassed["lint"]
	}
	if ran["build"] {
		metadata["build_passed"] = kindPassed["build"]
	}
	if ran["test"] {
		metadata["test_passed"] = kindPassed["test"]
		if kindPassed["test"] {
			metadata["test_pass_rate"] = 1.0
		} else {
			metadata["test_pass_rate"] = 0.0
		}
	}

	return models.ValidatorResult{
		ID:             "build",
		Passed:         passed,
		Issues:         issues,
		ReportMarkdown: report,
		Metadata:       metadata,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
