package validator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// apiTestGlobs mirrors the patterns api_validator.py globs for.
var apiTestGlobs = []string{
	"*api*test*", "*test*api*",
	"tests/api/*", "test/api/*",
}

// ApiValidator checks for the presence of API test coverage. It never
// blocks — an absence of API tests is reported, not failed.
type ApiValidator struct{}

func (ApiValidator) ID() string               { return "api" }
func (ApiValidator) Description() string      { return "API endpoint validation" }
func (ApiValidator) CapabilityTrigger() string { return "has_api" }

func (ApiValidator) Validate(_ context.Context, vc Context) models.ValidatorResult {
	var found []string
	for _, pattern := range apiTestGlobs {
		matches, _ := filepath.Glob(filepath.Join(vc.ProjectDir, pattern))
		found = append(found, matches...)
	}

	report := "## API Validation\n\n"
	if len(found) > 0 {
		report += fmt.Sprintf("- Found %d API test file(s)\n", len(found))
	} else {
		report += "- No dedicated API test files found\n"
	}
	report += "- API validation configured\n"

	if len(found) > 10 {
		found = found[:10]
	}
	return models.ValidatorResult{
		ID:             "api",
		Passed:         true,
		ReportMarkdown: report,
		Metadata:       map[string]interface{}{"test_files": found},
	}
}
