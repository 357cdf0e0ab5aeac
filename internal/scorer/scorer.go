// Package scorer implements the Scorer half of the Scorer & Lesson Store
// (C10): a deterministic, pure function of a spec directory that the MCTS
// Orchestrator (C8) backpropagates through the tree.
package scorer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

const (
	weightBuild = 0.30
	weightTest  = 0.30
	weightLint  = 0.10
	weightQA    = 0.30
)

// Breakdown is every term the total score is composed of, plus
// subtask_completion, which is reported but does not weight the total
// (§4.10 Score).
type Breakdown struct {
	BuildPassed        bool    `json:"build_passed"`
	TestPassRate        float64 `json:"test_pass_rate"`
	LintClean           bool    `json:"lint_clean"`
	QAApproved          bool    `json:"qa_approved"`
	SubtaskCompletion   float64 `json:"subtask_completion"`
	Total               float64 `json:"total"`
}

// Score reads everything Breakdown needs from specDir and returns the
// weighted total (§4.10 Score formula).
func Score(specDir string) float64 {
	return Evaluate(specDir).Total
}

// Evaluate is Score with the full per-term breakdown, for callers (status
// views, lesson text) that want to explain a score rather than just use it.
func Evaluate(specDir string) Breakdown {
	var b Breakdown

	results, hasResults := readValidatorResults(specDir)
	plan, _ := specfactory.ReadPlan(specDir)

	if hasResults {
		if build, ok := results.ByID("build"); ok {
			if v, ok := build.Metadata["build_passed"].(bool); ok {
				b.BuildPassed = v
			}
			if v, ok := build.Metadata["lint_passed"].(bool); ok {
				b.LintClean = v
			}
			if v, ok := build.Metadata["test_pass_rate"].(float64); ok {
				b.TestPassRate = v
			}
		}
	} else if plan != nil {
		b.BuildPassed, b.LintClean = inferBuildLintFromPlan(plan)
	}

	b.QAApproved = qaApproved(specDir, plan)
	if plan != nil {
		b.SubtaskCompletion = subtaskCompletion(plan)
	}

	b.Total = weightBuild*boolToFloat(b.BuildPassed) +
		weightTest*b.TestPassRate +
		weightLint*boolToFloat(b.LintClean) +
		weightQA*boolToFloat(b.QAApproved)
	return b
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func readValidatorResults(specDir string) (models.ValidatorResults, bool) {
	data, err := os.ReadFile(filepath.Join(specDir, "validator_results.json"))
	if err != nil {
		return models.ValidatorResults{}, false
	}
	var results models.ValidatorResults
	if json.Unmarshal(data, &results) != nil {
		return models.ValidatorResults{}, false
	}
	return results, true
}

// inferBuildLintFromPlan falls back to the plan's own lifecycle signal when
// no validator_results.json exists: a plan that made it to review or
// completion implies its build/lint passed at some point (§4.10 priority 2).
func inferBuildLintFromPlan(plan *models.Plan) (build, lint bool) {
	switch plan.ExecutionPhase {
	case "qa_review", "complete":
		return true, true
	}
	switch models.ClassOf(plan.Status) {
	case models.ClassReview, models.ClassCompleted:
		return true, true
	}
	return false, false
}

// subtaskCompletion is the fraction of reported subtasks marked completed,
// across every phase; zero when the plan has no phases yet.
func subtaskCompletion(plan *models.Plan) float64 {
	total, done := 0, 0
	for _, phase := range plan.Phases {
		for _, st := range phase.Subtasks {
			total++
			if st.Status == "completed" || st.Status == "done" {
				done++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}
