package models

import "time"

// NodeAction classifies how an MCTS node's spec was produced (§3 MCTS tree).
type NodeAction string

const (
	ActionRoot    NodeAction = "root"
	ActionDraft   NodeAction = "draft"
	ActionDebug   NodeAction = "debug"
	ActionImprove NodeAction = "improve"
)

// NodeStatus is an MCTS node's execution lifecycle.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeBug       NodeStatus = "bug"
)

// UnsetScore is the sentinel for "not yet evaluated" (§3 MCTS tree Node).
const UnsetScore = -1.0

// Node is one vertex of the MCTS tree. Parent/child references are IDs only
// (arena-plus-index design, §9 Design Notes) — the owning Tree resolves them.
type Node struct {
	ID          string                 `json:"id"`
	ParentID    string                 `json:"parent_id,omitempty"`
	SpecID      string                 `json:"spec_id,omitempty"`
	Action      NodeAction             `json:"action"`
	IdeaSummary string                 `json:"idea_summary,omitempty"`
	Score       float64                `json:"score"`
	VisitCount  int                    `json:"visit_count"`
	Status      NodeStatus             `json:"status"`
	CostSeconds float64                `json:"cost_seconds"`
	CostTokens  int64                  `json:"cost_tokens"`
	Children    []string               `json:"children"`
	Lessons     []string               `json:"lessons,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// IsExpandable reports whether a node is eligible for UCB1 selection
// (§4.7: completed and evaluated).
func (n *Node) IsExpandable() bool {
	return n.Status == NodeCompleted && n.Score != UnsetScore
}

// IsTerminal reports whether the node's simulation has concluded.
func (n *Node) IsTerminal() bool {
	return n.Status == NodeCompleted || n.Status == NodeFailed || n.Status == NodeBug
}

// Budget is the triple bounding MCTS exploration (§4.7 Budget, §8 P8).
type Budget struct {
	MaxWallSeconds float64 `json:"max_wall_seconds"`
	MaxIterations  int     `json:"max_iterations"`
	MaxBranches    int     `json:"max_branches"`

	SpentWallSeconds float64 `json:"spent_wall_seconds"`
	SpentIterations  int     `json:"spent_iterations"`
	SpentBranches    int     `json:"spent_branches"`
}

// HasBudget is the conjunction of all three remaining caps.
func (b *Budget) HasBudget() bool {
	return b.SpentWallSeconds < b.MaxWallSeconds &&
		b.SpentIterations < b.MaxIterations &&
		b.SpentBranches < b.MaxBranches
}

// AllocatedPerBranch is the per-branch time allocation used by the UCB1
// cost penalty (§4.7): total wall budget divided across the branch budget.
func (b *Budget) AllocatedPerBranch() float64 {
	if b.MaxBranches <= 0 {
		return b.MaxWallSeconds
	}
	return b.MaxWallSeconds / float64(b.MaxBranches)
}

// Tree is the persisted MCTS search tree (mcts_tree.json, §3).
type Tree struct {
	RootID             string           `json:"root_id"`
	Nodes              map[string]*Node `json:"nodes"`
	BestNodeID         string           `json:"best_node_id"`
	Budget             Budget           `json:"budgets"`
	ExplorationConst   float64          `json:"exploration_constant"`
	CostPenaltyWeight  float64          `json:"cost_penalty_weight"`
	CreatedAt          time.Time        `json:"created_at"`
}

// NewTree constructs a tree with a single completed root node, score 0.
func NewTree(rootID string, budget Budget) *Tree {
	root := &Node{
		ID:     rootID,
		Action: ActionRoot,
		Status: NodeCompleted,
		Score:  0,
	}
	return &Tree{
		RootID:            rootID,
		Nodes:             map[string]*Node{rootID: root},
		BestNodeID:        rootID,
		Budget:            budget,
		ExplorationConst:  1.4142135623730951, // sqrt(2)
		CostPenaltyWeight: -0.07,
		CreatedAt:         time.Now(),
	}
}

// Depth returns the number of edges from the root to node id (0 for root).
func (t *Tree) Depth(id string) int {
	depth := 0
	cur := t.Nodes[id]
	for cur != nil && cur.ParentID != "" {
		depth++
		cur = t.Nodes[cur.ParentID]
	}
	return depth
}

// AddChild creates and registers a child node under parentID, returning it.
func (t *Tree) AddChild(id, parentID string, action NodeAction) *Node {
	n := &Node{
		ID:       id,
		ParentID: parentID,
		Action:   action,
		Status:   NodePending,
		Score:    UnsetScore,
	}
	t.Nodes[id] = n
	if parent, ok := t.Nodes[parentID]; ok {
		parent.Children = append(parent.Children, id)
	}
	return n
}
