package validator

import (
	"context"
	"testing"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	id       string
	trigger  string
	result   models.ValidatorResult
	panicked bool
}

func (s stubValidator) ID() string               { return s.id }
func (s stubValidator) Description() string      { return s.id }
func (s stubValidator) CapabilityTrigger() string { return s.trigger }
func (s stubValidator) Validate(context.Context, Context) models.ValidatorResult {
	if s.panicked {
		panic("boom")
	}
	return s.result
}

func TestPipeline_SelectFiltersByCapability(t *testing.T) {
	p := &Pipeline{Validators: []Validator{
		stubValidator{id: "build"},
		stubValidator{id: "browser", trigger: "has_frontend"},
		stubValidator{id: "api", trigger: "has_api"},
	}}

	selected := p.Select(map[string]bool{"has_frontend": true})
	var ids []string
	for _, v := range selected {
		ids = append(ids, v.ID())
	}
	assert.ElementsMatch(t, []string{"build", "browser"}, ids)
}

func TestPipeline_RuntimeValidatorsSkippedOnBuildFailure(t *testing.T) {
	p := &Pipeline{Validators: []Validator{
		stubValidator{id: "build", result: models.ValidatorResult{ID: "build", Passed: false}},
		stubValidator{id: "browser", trigger: "has_frontend", result: models.ValidatorResult{ID: "browser", Passed: true}},
	}}

	results := p.Run(context.Background(), Context{Capabilities: map[string]bool{"has_frontend": true}})
	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Metadata["skipped"].(bool))
}

func TestPipeline_RuntimeValidatorsRunConcurrentlyWhenBuildPasses(t *testing.T) {
	p := &Pipeline{Validators: []Validator{
		stubValidator{id: "build", result: models.ValidatorResult{ID: "build", Passed: true}},
		stubValidator{id: "api", trigger: "has_api", result: models.ValidatorResult{ID: "api", Passed: true}},
		stubValidator{id: "database", trigger: "has_database", result: models.ValidatorResult{ID: "database", Passed: false}},
	}}

	results := p.Run(context.Background(), Context{Capabilities: map[string]bool{"has_api": true, "has_database": true}})
	require.Len(t, results, 3)

	byID := map[string]models.ValidatorResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.True(t, byID["build"].Passed)
	assert.True(t, byID["api"].Passed)
	assert.False(t, byID["database"].Passed)
}

func TestPipeline_PanickingValidatorBecomesMinorIssue(t *testing.T) {
	p := &Pipeline{Validators: []Validator{
		stubValidator{id: "build", result: models.ValidatorResult{ID: "build", Passed: true}},
		stubValidator{id: "api", trigger: "has_api", panicked: true},
	}}

	results := p.Run(context.Background(), Context{Capabilities: map[string]bool{"has_api": true}})
	require.Len(t, results, 2)

	var apiResult models.ValidatorResult
	for _, r := range results {
		if r.ID == "api" {
			apiResult = r
		}
	}
	assert.True(t, apiResult.Passed)
	require.Len(t, apiResult.Issues, 1)
	assert.Equal(t, models.SeverityMinor, apiResult.Issues[0].Severity)
}
