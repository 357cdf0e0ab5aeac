package models

import (
	"encoding/json"
	"time"
)

// Status classes for Plan.Status. Multiple concrete strings map onto each class;
// classification lives in Status.Class().
const (
	StatusQueue       = "queue"
	StatusBacklog     = "backlog"
	StatusQueued      = "queued"
	StatusInProgress  = "in_progress"
	StatusAIReview    = "ai_review"
	StatusHumanReview = "human_review"
	StatusDone        = "done"
	StatusCompleted   = "completed"
	StatusMerged      = "merged"
	StatusPRCreated   = "pr_created"
	StatusComplete    = "complete"
	StatusError       = "error"
	StatusFailed      = "failed"
	StatusStuck       = "stuck"
)

// StatusClass is the disjoint lifecycle class a concrete Plan.Status belongs to.
type StatusClass int

const (
	ClassUnknown StatusClass = iota
	ClassQueue
	ClassRunning
	ClassReview
	ClassCompleted
	ClassError
)

var statusClasses = map[string]StatusClass{
	StatusQueue:       ClassQueue,
	StatusBacklog:     ClassQueue,
	StatusQueued:      ClassQueue,
	StatusInProgress:  ClassRunning,
	StatusAIReview:    ClassReview,
	StatusHumanReview: ClassReview,
	StatusDone:        ClassCompleted,
	StatusCompleted:   ClassCompleted,
	StatusMerged:      ClassCompleted,
	StatusPRCreated:   ClassCompleted,
	StatusComplete:    ClassCompleted,
	StatusError:       ClassError,
	StatusFailed:      ClassError,
	StatusStuck:       ClassError,
}

// ClassOf classifies a raw plan status string.
func ClassOf(status string) StatusClass {
	if c, ok := statusClasses[status]; ok {
		return c
	}
	return ClassUnknown
}

// Priority levels, lower value dispatches first (P5).
const (
	PriorityCritical = 0
	PriorityHigh     = 1
	PriorityNormal   = 2
	PriorityLow      = 3
)

// TaskType values recognized by the executor's agent registry (§4.3) and the
// scheduler's dispatch rules (§4.4).
const (
	TaskDesign       = "design"
	TaskArchitecture = "architecture"
	TaskMCTS         = "mcts"
	TaskResearch     = "research"
	TaskReview       = "review"
	TaskImpl         = "impl"
	TaskFrontend     = "frontend"
	TaskBackend      = "backend"
	TaskDatabase     = "database"
	TaskAPI          = "api"
	TaskTest         = "test"
	TaskIntegration  = "integration"
	TaskDocs         = "docs"
	TaskVerify       = "verify"
	TaskErrorCheck   = "error_check"
	TaskDefault      = "default"
)

// planningTaskTypes run in "plan mode" per §4.4 Dispatch step 2.
var planningTaskTypes = map[string]bool{
	TaskDesign:       true,
	TaskArchitecture: true,
	"planning":       true,
	TaskResearch:     true,
	TaskReview:       true,
}

// IsPlanningType reports whether taskType should execute in plan mode.
func IsPlanningType(taskType string) bool {
	return planningTaskTypes[taskType]
}

// implLikeTaskTypes queue an auto-verify spec on success (§4.4 Auto-verify).
var implLikeTaskTypes = map[string]bool{
	TaskImpl:        true,
	TaskFrontend:    true,
	TaskBackend:     true,
	TaskDatabase:    true,
	TaskAPI:         true,
	TaskTest:        true,
	TaskIntegration: true,
	TaskDocs:        true,
	TaskDefault:     true,
}

// IsImplLike reports whether a completed task type should trigger auto-verify.
func IsImplLike(taskType string) bool {
	return implLikeTaskTypes[taskType]
}

// designClassTaskTypes are additionally forbidden at depth >= 2 (invariant I6).
var designClassTaskTypes = map[string]bool{
	TaskDesign:       true,
	TaskArchitecture: true,
	TaskMCTS:         true,
}

// IsDesignClass reports whether taskType is subject to the depth-2 restriction.
func IsDesignClass(taskType string) bool {
	return designClassTaskTypes[taskType]
}

// Subtask is a per-subtask self-report written by the executing agent (§3).
type Subtask struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase groups subtasks reported against a plan.
type Phase struct {
	Name     string    `json:"name"`
	Subtasks []Subtask `json:"subtasks"`
}

// Plan is the canonical lifecycle record for a spec, persisted as
// implementation_plan.json (§3 Plan record).
type Plan struct {
	SpecID       string                 `json:"-"`
	Status       string                 `json:"status"`
	TaskType     string                 `json:"taskType"`
	Priority     int                    `json:"priority"`
	DependsOn    []string               `json:"dependsOn"`
	ParentTask   string                 `json:"parentTask,omitempty"`
	Phases       []Phase                `json:"phases"`
	ChildSpecs   []string               `json:"childSpecs,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	LastError    string                 `json:"lastError,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`

	// ExecutionPhase is an optional hint the Scorer (§4.10) uses to infer
	// build/lint pass when validator_results.json is absent.
	ExecutionPhase string `json:"executionPhase,omitempty"`
}

// UnmarshalJSON normalizes dependsOn, which agents may write as a JSON array,
// a comma-separated string, or a JSON-encoded string (original Python
// _normalize_depends_on tolerance), into a plain []string.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type PlanAlias Plan
	aux := struct {
		DependsOn json.RawMessage `json:"dependsOn"`
		*PlanAlias
	}{
		PlanAlias: (*PlanAlias)(p),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	deps, err := NormalizeDependsOn(aux.DependsOn)
	if err != nil {
		return err
	}
	p.DependsOn = deps
	return nil
}

// IsCompleted reports whether the plan's status is in the completed class.
func (p *Plan) IsCompleted() bool {
	return ClassOf(p.Status) == ClassCompleted
}

// IsTerminal reports whether the plan's status will never be re-dispatched.
func (p *Plan) IsTerminal() bool {
	c := ClassOf(p.Status)
	return c == ClassCompleted || c == ClassError
}

// IsQueueClass reports whether the plan is awaiting dispatch.
func (p *Plan) IsQueueClass() bool {
	return ClassOf(p.Status) == ClassQueue
}
