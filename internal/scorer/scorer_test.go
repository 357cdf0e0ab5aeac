package scorer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

func writeValidatorResults(t *testing.T, dir string, metadata map[string]interface{}) {
	t.Helper()
	results := models.ValidatorResults{Results: []models.ValidatorResult{
		{ID: "build", Passed: true, Metadata: metadata},
	}}
	data, err := json.Marshal(results)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "validator_results.json"), data, 0644))
}

func writePlan(t *testing.T, dir string, plan *models.Plan) {
	t.Helper()
	require.NoError(t, specfactory.WritePlan(dir, plan))
}

func TestEvaluate_ReadsValidatorResultsWhenPresent(t *testing.T) {
	dir := t.TempDir()
	writeValidatorResults(t, dir, map[string]interface{}{
		"build_passed":   true,
		"lint_passed":    true,
		"test_pass_rate": 1.0,
	})

	b := Evaluate(dir)
	assert.True(t, b.BuildPassed)
	assert.True(t, b.LintClean)
	assert.Equal(t, 1.0, b.TestPassRate)
	assert.InDelta(t, 0.70, b.Total, 1e-9) // 0.30 build + 0.30 test + 0.10 lint, no QA
}

func TestEvaluate_InfersBuildLintFromPlanWhenNoValidatorResults(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, &models.Plan{Status: models.StatusComplete})

	b := Evaluate(dir)
	assert.True(t, b.BuildPassed)
	assert.True(t, b.LintClean)
}

func TestEvaluate_DefaultsToFalseWithNoSignal(t *testing.T) {
	dir := t.TempDir()
	b := Evaluate(dir)
	assert.False(t, b.BuildPassed)
	assert.Equal(t, 0.0, b.Total)
}

func TestSubtaskCompletion(t *testing.T) {
	plan := &models.Plan{Phases: []models.Phase{
		{Subtasks: []models.Subtask{{Status: "completed"}, {Status: "pending"}}},
		{Subtasks: []models.Subtask{{Status: "done"}}},
	}}
	assert.InDelta(t, 2.0/3.0, subtaskCompletion(plan), 1e-9)
}

func TestSubtaskCompletion_NoPhasesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, subtaskCompletion(&models.Plan{}))
}

func TestQAApproved_MarkdownHeadingApproved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qa_report.md"), []byte("# QA Review\n\n## Verdict: Approved\n\nLooks solid.\n"), 0644))
	assert.True(t, qaApproved(dir, nil))
}

func TestQAApproved_MarkdownHeadingRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qa_report.md"), []byte("# QA Review\n\n## Verdict: Rejected\n\nMissing tests.\n"), 0644))
	assert.False(t, qaApproved(dir, nil))
}

func TestQAApproved_FallsBackToRawTextWhenNoHeadingVerdict(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qa_report.md"), []byte("Just a note: not approved due to missing coverage.\n"), 0644))
	assert.False(t, qaApproved(dir, nil))
}

func TestQAApproved_FallsBackToPlanStatusWhenNoReport(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, qaApproved(dir, &models.Plan{Status: models.StatusDone}))
	assert.False(t, qaApproved(dir, &models.Plan{Status: models.StatusInProgress}))
}

func TestScore_FullMarksReachesOne(t *testing.T) {
	dir := t.TempDir()
	writeValidatorResults(t, dir, map[string]interface{}{
		"build_passed":   true,
		"lint_passed":    true,
		"test_pass_rate": 1.0,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qa_report.md"), []byte("## Approved\n"), 0644))

	assert.InDelta(t, 1.0, Score(dir), 1e-9)
}
