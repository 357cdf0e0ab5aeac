package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// Idea is one diverse approach an idea generator proposes for a node's
// spec (§4.8 Expand, step 2).
type Idea struct {
	Summary             string   `json:"summary"`
	Strategy             string   `json:"strategy"`
	Pros                 []string `json:"pros,omitempty"`
	Cons                 []string `json:"cons,omitempty"`
	EstimatedComplexity string   `json:"estimated_complexity,omitempty"`
}

// IdeaGenerator proposes n diverse ideas for task, treated as an opaque
// callable (§4.8: "an idea-generating external agent").
type IdeaGenerator interface {
	GenerateIdeas(ctx context.Context, task string, n int) ([]Idea, error)
}

// DebugPlanner turns a failed node into a spec definition for a debug
// child (§4.8 Expand, step 2, subsequent rounds).
type DebugPlanner interface {
	PlanDebug(ctx context.Context, node *models.Node, specDir string) (models.SpecDef, error)
}

// Improver turns a selected expandable node into a spec definition for an
// improve child.
type Improver interface {
	PlanImprovement(ctx context.Context, node *models.Node, specDir string) (models.SpecDef, error)
}

// LessonExtractor distills lessons from completed branches (§4.8 Extract
// lessons, step 5).
type LessonExtractor interface {
	ExtractLessons(ctx context.Context, completed []*models.Node, tree *models.Tree) ([]models.Lesson, error)
}

// ExternalCommand is the shared shape of the default generator/planner/
// extractor implementations: an opaque subprocess invoked with a JSON
// request on stdin and a JSON response expected on stdout, the same
// external-agent contract agentexec.BuildCommand uses for unregistered
// task types, generalized to a structured-output call.
type ExternalCommand struct {
	Path string
	Args []string
}

func (e ExternalCommand) run(ctx context.Context, request, response interface{}) error {
	if e.Path == "" {
		return fmt.Errorf("orchestrator: no external command configured")
	}
	reqBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Path, e.Args...)
	cmd.Stdin = bytes.NewReader(reqBytes)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("orchestrator: external command %s failed: %w (%s)", e.Path, err, stderr.String())
	}
	if err := json.Unmarshal(out, response); err != nil {
		return fmt.Errorf("orchestrator: parse response from %s: %w", e.Path, err)
	}
	return nil
}

// DefaultIdeaGenerator shells out to an external command that receives
// {"task":..., "count":...} on stdin and returns a JSON array of Idea.
type DefaultIdeaGenerator struct{ ExternalCommand }

func (g DefaultIdeaGenerator) GenerateIdeas(ctx context.Context, task string, n int) ([]Idea, error) {
	req := struct {
		Task  string `json:"task"`
		Count int    `json:"count"`
	}{task, n}
	var ideas []Idea
	if err := g.run(ctx, req, &ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

// DefaultDebugPlanner shells out to an external command that receives the
// failed node's ID, summary and spec directory, returning a single
// models.SpecDef.
type DefaultDebugPlanner struct{ ExternalCommand }

func (d DefaultDebugPlanner) PlanDebug(ctx context.Context, node *models.Node, specDir string) (models.SpecDef, error) {
	req := struct {
		NodeID      string `json:"node_id"`
		IdeaSummary string `json:"idea_summary"`
		SpecDir     string `json:"spec_dir"`
	}{node.ID, node.IdeaSummary, specDir}
	var def models.SpecDef
	if err := d.run(ctx, req, &def); err != nil {
		return models.SpecDef{}, err
	}
	return def, nil
}

// DefaultImprover shells out to an external command that receives a
// completed, evaluated node's summary and score, returning a SpecDef for
// the improvement attempt.
type DefaultImprover struct{ ExternalCommand }

func (i DefaultImprover) PlanImprovement(ctx context.Context, node *models.Node, specDir string) (models.SpecDef, error) {
	req := struct {
		NodeID      string  `json:"node_id"`
		IdeaSummary string  `json:"idea_summary"`
		Score       float64 `json:"score"`
		SpecDir     string  `json:"spec_dir"`
	}{node.ID, node.IdeaSummary, node.Score, specDir}
	var def models.SpecDef
	if err := i.run(ctx, req, &def); err != nil {
		return models.SpecDef{}, err
	}
	return def, nil
}

// DefaultLessonExtractor shells out to an external command that receives
// the completed nodes' summaries/scores and returns a JSON array of
// models.Lesson.
type DefaultLessonExtractor struct{ ExternalCommand }

func (l DefaultLessonExtractor) ExtractLessons(ctx context.Context, completed []*models.Node, tree *models.Tree) ([]models.Lesson, error) {
	type nodeView struct {
		NodeID      string  `json:"node_id"`
		IdeaSummary string  `json:"idea_summary"`
		Score       float64 `json:"score"`
		Action      string  `json:"action"`
	}
	views := make([]nodeView, 0, len(completed))
	for _, n := range completed {
		views = append(views, nodeView{n.ID, n.IdeaSummary, n.Score, string(n.Action)})
	}
	req := struct {
		Nodes []nodeView `json:"nodes"`
	}{views}

	var lessons []models.Lesson
	if err := l.run(ctx, req, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}
