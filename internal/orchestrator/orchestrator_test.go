package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

type fakeIdeaGenerator struct{ ideas []Idea }

func (g fakeIdeaGenerator) GenerateIdeas(ctx context.Context, task string, n int) ([]Idea, error) {
	return g.ideas, nil
}

func budget() models.Budget {
	return models.Budget{MaxWallSeconds: 3600, MaxIterations: 10, MaxBranches: 10}
}

func TestExpandFirstRound_CreatesOneNodePerIdea(t *testing.T) {
	specsDir := t.TempDir()
	tree := models.NewTree("root", budget())

	o := &Orchestrator{
		Factory:       specfactory.New(specsDir),
		SpecsDir:      specsDir,
		MaxChildDepth: 3,
		IdeaGenerator: fakeIdeaGenerator{ideas: []Idea{
			{Summary: "try A", Strategy: "fast"},
			{Summary: "try B", Strategy: "safe"},
		}},
	}

	nodes, err := o.expandFirstRound(context.Background(), tree, "root", "build a thing")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Equal(t, models.NodeRunning, n.Status)
		assert.NotEmpty(t, n.SpecID)
		assert.DirExists(t, filepath.Join(specsDir, n.SpecID))
	}
}

func TestExpandFirstRound_NilGeneratorProducesNoNodes(t *testing.T) {
	o := &Orchestrator{SpecsDir: t.TempDir()}
	tree := models.NewTree("root", budget())

	nodes, err := o.expandFirstRound(context.Background(), tree, "root", "build a thing")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestCreateChildFromDef_DepthGuardSkipsSpecCreation(t *testing.T) {
	specsDir := t.TempDir()
	tree := models.NewTree("root", budget())

	o := &Orchestrator{
		Factory:       specfactory.New(specsDir),
		SpecsDir:      specsDir,
		MaxChildDepth: 0,
	}

	n, err := o.createChild(tree, "root", models.ActionDraft, "idea", "")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, models.NodeFailed, n.Status)
	assert.Empty(t, n.SpecID)
	assert.Equal(t, "Depth limit exceeded", n.Metadata["reason"])

	entries, err := os.ReadDir(specsDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no spec should be created for a depth-exceeded child")
}

func TestSimulateNode_CompletesOnDonePlan(t *testing.T) {
	specsDir := t.TempDir()
	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "already done", TaskType: models.TaskImpl})
	require.NoError(t, err)
	cs.Plan.Status = models.StatusDone
	require.NoError(t, specfactory.WritePlan(cs.Dir, cs.Plan))

	o := &Orchestrator{SpecsDir: specsDir, PollInterval: 5 * time.Millisecond, RoundTimeout: time.Second}
	n := &models.Node{ID: "n1", SpecID: cs.ID, Status: models.NodeRunning}

	o.simulateNode(context.Background(), n)
	assert.Equal(t, models.NodeCompleted, n.Status)
}

func TestSimulateNode_FailsOnErrorPlan(t *testing.T) {
	specsDir := t.TempDir()
	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "will error", TaskType: models.TaskImpl})
	require.NoError(t, err)
	cs.Plan.Status = models.StatusFailed
	require.NoError(t, specfactory.WritePlan(cs.Dir, cs.Plan))

	o := &Orchestrator{SpecsDir: specsDir, PollInterval: 5 * time.Millisecond, RoundTimeout: time.Second}
	n := &models.Node{ID: "n1", SpecID: cs.ID, Status: models.NodeRunning}

	o.simulateNode(context.Background(), n)
	assert.Equal(t, models.NodeFailed, n.Status)
}

func TestSimulateNode_TimesOutWhenPlanNeverTerminates(t *testing.T) {
	specsDir := t.TempDir()
	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "stuck", TaskType: models.TaskImpl})
	require.NoError(t, err)

	o := &Orchestrator{SpecsDir: specsDir, PollInterval: 5 * time.Millisecond, RoundTimeout: 20 * time.Millisecond}
	n := &models.Node{ID: "n1", SpecID: cs.ID, Status: models.NodeRunning}

	o.simulateNode(context.Background(), n)
	assert.Equal(t, models.NodeFailed, n.Status)
	assert.Equal(t, "simulation timed out", n.Metadata["reason"])
}

func TestEvaluateNewlyTerminal_ScoresCompletedSkipsAlreadyEvaluated(t *testing.T) {
	specsDir := t.TempDir()
	tree := models.NewTree("root", budget())

	completed := tree.AddChild("done", "root", models.ActionDraft)
	completed.Status = models.NodeCompleted
	completed.SpecID = "001-done"

	failed := tree.AddChild("bad", "root", models.ActionDraft)
	failed.Status = models.NodeFailed

	alreadyScored := tree.AddChild("scored", "root", models.ActionDraft)
	alreadyScored.Status = models.NodeCompleted
	alreadyScored.Score = 0.4

	o := &Orchestrator{
		SpecsDir: specsDir,
		Scorer:   ScorerFunc(func(specDir string) float64 { return 0.8 }),
	}

	o.evaluateNewlyTerminal(tree, []*models.Node{completed, failed, alreadyScored})

	assert.Equal(t, 0.8, completed.Score)
	assert.Equal(t, 0.0, failed.Score)
	assert.Equal(t, 0.4, alreadyScored.Score, "already-evaluated node must not be re-scored")
	assert.Equal(t, "done", tree.BestNodeID)
}

func TestPlanTerminal(t *testing.T) {
	cases := []struct {
		status           string
		terminal, success bool
	}{
		{models.StatusDone, true, true},
		{models.StatusComplete, true, true},
		{models.StatusHumanReview, true, true},
		{models.StatusError, true, false},
		{models.StatusFailed, true, false},
		{models.StatusInProgress, false, false},
		{models.StatusQueue, false, false},
		{models.StatusAIReview, false, false},
	}
	for _, c := range cases {
		terminal, success := planTerminal(&models.Plan{Status: c.status})
		assert.Equal(t, c.terminal, terminal, "status %s terminal", c.status)
		assert.Equal(t, c.success, success, "status %s success", c.status)
	}
}

// fakeScorer lets the integration test grade every finished node the same.
type fakeScorer struct{ score float64 }

func (f fakeScorer) Score(specDir string) float64 { return f.score }

// autoCompleteSpecs watches specsDir and marks every queued spec it finds as
// done, standing in for an external agent actually doing the work.
func autoCompleteSpecs(ctx context.Context, t *testing.T, specsDir string) {
	t.Helper()
	ticker := time.NewTicker(5 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		seen := map[string]bool{}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				entries, err := os.ReadDir(specsDir)
				if err != nil {
					continue
				}
				for _, e := range entries {
					if !e.IsDir() || seen[e.Name()] {
						continue
					}
					dir := filepath.Join(specsDir, e.Name())
					plan, err := specfactory.ReadPlan(dir)
					if err != nil {
						continue
					}
					plan.Status = models.StatusDone
					if specfactory.WritePlan(dir, plan) == nil {
						seen[e.Name()] = true
					}
				}
			}
		}
	}()
}

func TestRun_ConvergesOnAcceptThreshold(t *testing.T) {
	specsDir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	autoCompleteSpecs(ctx, t, specsDir)

	o := &Orchestrator{
		Factory:       specfactory.New(specsDir),
		SpecsDir:      specsDir,
		MaxChildDepth: 3,
		IdeaGenerator: fakeIdeaGenerator{ideas: []Idea{{Summary: "only idea"}}},
		Scorer:        fakeScorer{score: 0.9},
		PollInterval:  5 * time.Millisecond,
		RoundTimeout:  500 * time.Millisecond,
		AcceptThreshold: 0.5,
	}

	result, err := o.Run(ctx, "root", specsDir, "root task", models.Budget{MaxWallSeconds: 3600, MaxIterations: 5, MaxBranches: 5})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0.9, result.BestScore)
	assert.Equal(t, 1, result.Iterations)
	assert.FileExists(t, filepath.Join(specsDir, "mcts_tree.json"))
}
