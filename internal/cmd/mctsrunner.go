package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/config"
	"github.com/akfldk1028/taskdaemon/internal/filelock"
	"github.com/akfldk1028/taskdaemon/internal/history"
	"github.com/akfldk1028/taskdaemon/internal/mcts"
	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/orchestrator"
	"github.com/akfldk1028/taskdaemon/internal/scorer"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

// mctsRunner adapts internal/orchestrator into a daemon.MCTSRunner: it is
// the concrete implementation the daemon drives in-process for any spec
// whose TaskType is "mcts" (§4.8).
type mctsRunner struct {
	factory *specfactory.Factory
	cfg     *config.Config
	hist    *history.Store // nil disables the secondary SQLite index
}

func newMCTSRunner(cfg *config.Config, factory *specfactory.Factory, hist *history.Store) *mctsRunner {
	return &mctsRunner{factory: factory, cfg: cfg, hist: hist}
}

func (r *mctsRunner) externalCommand(mode string) orchestrator.ExternalCommand {
	return orchestrator.ExternalCommand{
		Path: r.cfg.Executor.ExternalCLIPath,
		Args: []string{"--mode", mode},
	}
}

// RunMCTS implements daemon.MCTSRunner.
func (r *mctsRunner) RunMCTS(ctx context.Context, specID, specDir string) error {
	req, err := specfactory.ReadRequirements(specDir)
	task := specID
	if err == nil && req.Task != "" {
		task = req.Task
	}

	budget := models.Budget{
		MaxWallSeconds: float64(r.cfg.MCTS.MaxWallSeconds),
		MaxIterations:  r.cfg.MCTS.MaxIterations,
		MaxBranches:    r.cfg.MCTS.MaxBranches,
	}

	orch := &orchestrator.Orchestrator{
		Factory:          r.factory,
		SpecsDir:         r.cfg.SpecsDir,
		MaxChildDepth:    r.cfg.MaxChildDepth,
		IdeaGenerator:    orchestrator.DefaultIdeaGenerator{ExternalCommand: r.externalCommand("mcts-ideas")},
		DebugPlanner:     orchestrator.DefaultDebugPlanner{ExternalCommand: r.externalCommand("mcts-debug")},
		Improver:         orchestrator.DefaultImprover{ExternalCommand: r.externalCommand("mcts-improve")},
		LessonExtractor:  orchestrator.DefaultLessonExtractor{ExternalCommand: r.externalCommand("mcts-lessons")},
		Scorer:           orchestrator.ScorerFunc(scorer.Score),
		ChildTaskType:    models.TaskImpl,
		AcceptThreshold:  r.cfg.MCTS.AcceptThreshold,
		ConvergenceDelta: r.cfg.MCTS.ConvergenceDelta,
		OnLessons: func(store *models.LessonStore) {
			r.persistLessons(specDir, store)
		},
	}

	result, runErr := orch.Run(ctx, specID, specDir, task, budget)

	plan, err := specfactory.ReadPlan(specDir)
	if err != nil {
		return fmt.Errorf("mcts: re-read root plan: %w", err)
	}

	if runErr != nil {
		plan.Status = models.StatusError
		plan.LastError = runErr.Error()
		plan.UpdatedAt = time.Now()
		_ = specfactory.WritePlan(specDir, plan)
		return runErr
	}

	if plan.Context == nil {
		plan.Context = map[string]interface{}{}
	}
	plan.Context["mcts_result"] = map[string]interface{}{
		"best_node_id": result.BestNodeID,
		"best_score":   result.BestScore,
		"iterations":   result.Iterations,
		"branches":     result.Branches,
		"summary":      result.Summary,
	}
	plan.Status = models.StatusComplete
	plan.UpdatedAt = time.Now()
	if err := specfactory.WritePlan(specDir, plan); err != nil {
		return fmt.Errorf("mcts: write root plan: %w", err)
	}

	r.recordBestRun(specID, specDir, result)
	return nil
}

func (r *mctsRunner) persistLessons(specDir string, store *models.LessonStore) {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return
	}
	_ = filelock.AtomicWrite(filepath.Join(specDir, "mcts_lessons.json"), data)
	if r.hist != nil {
		_ = r.hist.RecordLessons(*store)
	}
}

func (r *mctsRunner) recordBestRun(rootSpecID, rootSpecDir string, result *orchestrator.Result) {
	if r.hist == nil || result.BestNodeID == "" {
		return
	}
	tree, err := mcts.Load(rootSpecDir)
	if err != nil {
		return
	}
	best, ok := tree.Nodes[result.BestNodeID]
	if !ok || best.SpecID == "" {
		return
	}
	b := scorer.Evaluate(filepath.Join(r.cfg.SpecsDir, best.SpecID))
	_ = r.hist.RecordScoredRun(history.ScoredRun{
		RootSpecID:        rootSpecID,
		NodeID:            best.ID,
		SpecID:            best.SpecID,
		BuildPassed:       b.BuildPassed,
		TestPassRate:      b.TestPassRate,
		LintClean:         b.LintClean,
		QAApproved:        b.QAApproved,
		SubtaskCompletion: b.SubtaskCompletion,
		Total:             b.Total,
	})
}
