// Package orchestrator implements the MCTS Orchestrator (C8): the outer
// expand/simulate/evaluate/learn loop driving internal/mcts's tree against
// specs created through internal/specfactory.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/mcts"
	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

// Scorer is the narrow surface the orchestrator needs from the Scorer &
// Lesson Store (C10): a pure function of a spec directory.
type Scorer interface {
	Score(specDir string) float64
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(specDir string) float64

func (f ScorerFunc) Score(specDir string) float64 { return f(specDir) }

const (
	defaultIdeaCount        = 4
	defaultPollInterval     = 30 * time.Second
	defaultRoundTimeout     = 30 * time.Minute
	defaultAcceptThreshold  = 0.7
	defaultConvergenceDelta = 0.02
)

// Orchestrator drives one MCTS search rooted at a spec (§4.8 Outer loop).
type Orchestrator struct {
	Factory       *specfactory.Factory
	SpecsDir      string
	MaxChildDepth int

	IdeaGenerator   IdeaGenerator
	DebugPlanner    DebugPlanner
	Improver        Improver
	LessonExtractor LessonExtractor
	Scorer          Scorer

	// ChildTaskType is the task type assigned to every spec the
	// orchestrator creates; it determines how agentexec.BuildCommand
	// dispatches it.
	ChildTaskType string

	IdeaCount        int
	PollInterval     time.Duration
	RoundTimeout     time.Duration
	AcceptThreshold  float64
	ConvergenceDelta float64

	// OnLessons is called after every successful lesson-extraction round
	// with the merged store, so a caller can persist mcts_lessons.json;
	// left nil disables persistence.
	OnLessons func(store *models.LessonStore)
}

// Result is the outer loop's final report (§4.8 step 7 Finalize).
type Result struct {
	BestNodeID string
	BestScore  float64
	Iterations int
	Branches   int
	Lessons    []models.Lesson
	Summary    string
}

func (o *Orchestrator) ideaCount() int {
	if o.IdeaCount > 0 {
		return o.IdeaCount
	}
	return defaultIdeaCount
}

func (o *Orchestrator) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return defaultPollInterval
}

func (o *Orchestrator) roundTimeout() time.Duration {
	if o.RoundTimeout > 0 {
		return o.RoundTimeout
	}
	return defaultRoundTimeout
}

func (o *Orchestrator) acceptThreshold() float64 {
	if o.AcceptThreshold > 0 {
		return o.AcceptThreshold
	}
	return defaultAcceptThreshold
}

func (o *Orchestrator) convergenceDelta() float64 {
	if o.ConvergenceDelta > 0 {
		return o.ConvergenceDelta
	}
	return defaultConvergenceDelta
}

func (o *Orchestrator) childTaskType() string {
	if o.ChildTaskType != "" {
		return o.ChildTaskType
	}
	return models.TaskImpl
}

// Run executes the full outer loop against rootSpecID/rootSpecDir until
// convergence or budget exhaustion (§4.8).
func (o *Orchestrator) Run(ctx context.Context, rootSpecID, rootSpecDir, task string, budget models.Budget) (*Result, error) {
	tree, err := mcts.LoadOrCreate(rootSpecDir, rootSpecID, budget)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load tree: %w", err)
	}

	lessonStore := &models.LessonStore{}
	var prevBestScore float64
	flatRounds := 0
	round := 0

	for {
		round++
		if !tree.Budget.HasBudget() {
			break
		}

		var newNodes []*models.Node
		if round == 1 {
			newNodes, err = o.expandFirstRound(ctx, tree, rootSpecID, task)
		} else {
			newNodes, err = o.expandSubsequentRound(ctx, tree)
		}
		if err != nil {
			return nil, fmt.Errorf("orchestrator: expand round %d: %w", round, err)
		}
		tree.Budget.SpentIterations++
		tree.Budget.SpentBranches += len(newNodes)
		if err := mcts.Save(rootSpecDir, tree); err != nil {
			return nil, err
		}

		if len(newNodes) > 0 {
			// Depth-exceeded children are already NodeFailed with no spec
			// on disk (createChildFromDef); only poll the ones actually
			// dispatched.
			var dispatched []*models.Node
			for _, n := range newNodes {
				if n.Status == models.NodeRunning {
					dispatched = append(dispatched, n)
				}
			}
			if len(dispatched) > 0 {
				o.simulateRound(ctx, dispatched)
			}
			o.evaluateNewlyTerminal(tree, newNodes)
			if err := mcts.Save(rootSpecDir, tree); err != nil {
				return nil, err
			}
		}

		if completed := mcts.CompletedNodes(tree); len(completed) >= 2 && o.LessonExtractor != nil {
			lessons, err := o.LessonExtractor.ExtractLessons(ctx, completed, tree)
			if err == nil && len(lessons) > 0 {
				lessonStore.Merge(lessons...)
				if o.OnLessons != nil {
					o.OnLessons(lessonStore)
				}
			}
		}

		best, ok := tree.Nodes[tree.BestNodeID]
		bestScore := 0.0
		if ok {
			bestScore = best.Score
		}

		if bestScore >= o.acceptThreshold() {
			break
		}
		delta := bestScore - prevBestScore
		if delta < 0 {
			delta = -delta
		}
		if round > 1 && delta < o.convergenceDelta() {
			flatRounds++
			if flatRounds >= 2 {
				break
			}
		} else {
			flatRounds = 0
		}
		prevBestScore = bestScore
	}

	if err := mcts.Save(rootSpecDir, tree); err != nil {
		return nil, err
	}

	best, _ := tree.Nodes[tree.BestNodeID]
	bestScore := 0.0
	if best != nil {
		bestScore = best.Score
	}

	return &Result{
		BestNodeID: tree.BestNodeID,
		BestScore:  bestScore,
		Iterations: tree.Budget.SpentIterations,
		Branches:   tree.Budget.SpentBranches,
		Lessons:    lessonStore.Lessons,
		Summary:    fmt.Sprintf("%d round(s), %d branch(es), best score %.2f", tree.Budget.SpentIterations, tree.Budget.SpentBranches, bestScore),
	}, nil
}

// expandFirstRound requests N diverse ideas and creates one draft child
// node + spec per idea (§4.8 Expand, first round).
func (o *Orchestrator) expandFirstRound(ctx context.Context, tree *models.Tree, parentID, task string) ([]*models.Node, error) {
	if o.IdeaGenerator == nil {
		return nil, nil
	}
	ideas, err := o.IdeaGenerator.GenerateIdeas(ctx, task, o.ideaCount())
	if err != nil {
		return nil, err
	}

	var nodes []*models.Node
	for _, idea := range ideas {
		n, err := o.createChild(tree, parentID, models.ActionDraft, idea.Summary, idea.Strategy)
		if err != nil {
			return nodes, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// expandSubsequentRound debugs at most one failed node and improves one
// UCB-selected expandable node (§4.8 Expand, subsequent rounds). Each
// planner is handed the specific node's own spec directory, not the root's.
func (o *Orchestrator) expandSubsequentRound(ctx context.Context, tree *models.Tree) ([]*models.Node, error) {
	var nodes []*models.Node

	if failed := mcts.FailedNodes(tree); len(failed) > 0 && o.DebugPlanner != nil {
		target := failed[0]
		def, err := o.DebugPlanner.PlanDebug(ctx, target, o.specDirFor(target))
		if err == nil {
			n, err := o.createChildFromDef(tree, target.ID, models.ActionDebug, def)
			if err != nil {
				return nodes, err
			}
			if n != nil {
				nodes = append(nodes, n)
			}
		}
	}

	if selected := mcts.SelectExpandable(tree); selected != nil && o.Improver != nil {
		def, err := o.Improver.PlanImprovement(ctx, selected, o.specDirFor(selected))
		if err == nil {
			n, err := o.createChildFromDef(tree, selected.ID, models.ActionImprove, def)
			if err != nil {
				return nodes, err
			}
			if n != nil {
				nodes = append(nodes, n)
			}
		}
	}

	return nodes, nil
}

func (o *Orchestrator) specDirFor(n *models.Node) string {
	return filepath.Join(o.SpecsDir, n.SpecID)
}

// createChild applies the depth guard (§4.8 Depth guard) before creating
// a draft spec child for idea/strategy.
func (o *Orchestrator) createChild(tree *models.Tree, parentID string, action models.NodeAction, summary, strategy string) (*models.Node, error) {
	task := summary
	if strategy != "" {
		task = fmt.Sprintf("%s (%s)", summary, strategy)
	}
	def := models.SpecDef{
		Task:       task,
		ParentTask: parentID,
		TaskType:   o.childTaskType(),
	}
	return o.createChildFromDef(tree, parentID, action, def)
}

func (o *Orchestrator) createChildFromDef(tree *models.Tree, parentID string, action models.NodeAction, def models.SpecDef) (*models.Node, error) {
	nodeID := fmt.Sprintf("%s-%d", parentID, len(tree.Nodes))
	n := tree.AddChild(nodeID, parentID, action)
	n.IdeaSummary = def.Task

	if mcts.ExceedsDepth(tree, parentID, o.MaxChildDepth) {
		n.Status = models.NodeFailed
		n.Metadata = map[string]interface{}{"reason": "Depth limit exceeded"}
		return n, nil
	}

	if def.ParentTask == "" {
		def.ParentTask = parentID
	}
	created, err := o.Factory.CreateOne(def)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create child spec: %w", err)
	}
	n.SpecID = created.ID
	n.Status = models.NodeRunning
	return n, nil
}

// simulateRound polls every new node's spec plan file until it reaches a
// terminal status or the per-round timeout elapses (§4.8 Simulate).
func (o *Orchestrator) simulateRound(ctx context.Context, nodes []*models.Node) {
	var wg sync.WaitGroup

	for _, n := range nodes {
		wg.Add(1)
		go func(n *models.Node) {
			defer wg.Done()
			o.simulateNode(ctx, n)
		}(n)
	}
	wg.Wait()
}

func (o *Orchestrator) simulateNode(ctx context.Context, n *models.Node) {
	deadline := time.Now().Add(o.roundTimeout())
	ticker := time.NewTicker(o.pollInterval())
	defer ticker.Stop()

	specDir := filepath.Join(o.SpecsDir, n.SpecID)

	for {
		plan, err := specfactory.ReadPlan(specDir)
		if err == nil {
			if terminal, success := planTerminal(plan); terminal {
				if success {
					n.Status = models.NodeCompleted
				} else {
					n.Status = models.NodeFailed
				}
				return
			}
		}

		if time.Now().After(deadline) {
			n.Status = models.NodeFailed
			if n.Metadata == nil {
				n.Metadata = map[string]interface{}{}
			}
			n.Metadata["reason"] = "simulation timed out"
			return
		}

		select {
		case <-ctx.Done():
			n.Status = models.NodeFailed
			return
		case <-ticker.C:
		}
	}
}

// evaluateNewlyTerminal scores every node that reached a terminal status
// this round and backpropagates the result (§4.8 Evaluate, step 4).
func (o *Orchestrator) evaluateNewlyTerminal(tree *models.Tree, nodes []*models.Node) {
	for _, n := range nodes {
		if !n.IsTerminal() || n.Score != models.UnsetScore {
			continue
		}
		score := 0.0
		if n.Status == models.NodeCompleted && o.Scorer != nil {
			score = o.Scorer.Score(o.specDirFor(n))
		}
		mcts.Backpropagate(tree, n.ID, score)
	}
}

// planTerminal treats human_review as a successful stopping point too: a
// spec waiting on a human is no longer runnable work for this round.
func planTerminal(p *models.Plan) (terminal bool, success bool) {
	switch models.ClassOf(p.Status) {
	case models.ClassCompleted:
		return true, true
	case models.ClassError:
		return true, false
	case models.ClassReview:
		if p.Status == models.StatusHumanReview {
			return true, true
		}
	}
	return false, false
}
