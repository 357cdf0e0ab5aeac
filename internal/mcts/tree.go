// Package mcts implements the MCTS Tree & Budget (C7): UCB1 selection with
// a cost-aware penalty, backpropagation, and depth accounting over the
// models.Tree/models.Node shapes persisted as mcts_tree.json.
package mcts

import (
	"math"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// SelectExpandable returns the expandable non-root node with the highest
// UCB1 score, or nil if the tree has none (§4.7 UCB1 selection).
func SelectExpandable(t *models.Tree) *models.Node {
	var best *models.Node
	bestScore := math.Inf(-1)
	for id, n := range t.Nodes {
		if id == t.RootID || !n.IsExpandable() {
			continue
		}
		score := ucb1(t, n)
		if score > bestScore {
			bestScore = score
			best = n
		}
	}
	return best
}

// ucb1 implements §4.7's formula. Unvisited nodes score +Inf so they are
// always preferred over any visited node.
func ucb1(t *models.Tree, n *models.Node) float64 {
	if n.VisitCount == 0 {
		return math.Inf(1)
	}

	parentVisits := float64(t.Budget.SpentIterations)
	if parent, ok := t.Nodes[n.ParentID]; ok && float64(parent.VisitCount) > parentVisits {
		parentVisits = float64(parent.VisitCount)
	}
	if parentVisits < 1 {
		parentVisits = 1
	}

	exploration := t.ExplorationConst * math.Sqrt(math.Log(parentVisits)/float64(n.VisitCount))
	return n.Score + exploration*costPenalty(t, n)
}

// costPenalty is (allocated_per_branch / v.cost_seconds) ^ w; a node with
// no recorded cost is treated as free (no penalty or bonus).
func costPenalty(t *models.Tree, n *models.Node) float64 {
	if n.CostSeconds <= 0 {
		return 1
	}
	allocated := t.Budget.AllocatedPerBranch()
	if allocated <= 0 {
		return 1
	}
	return math.Pow(allocated/n.CostSeconds, t.CostPenaltyWeight)
}

// Backpropagate sets nodeID's score once, increments its own visit count,
// then walks up ancestors incrementing only their visit counts. best_node_id
// updates on strict improvement only (first-write-wins on ties), per §4.7.
func Backpropagate(t *models.Tree, nodeID string, score float64) {
	n, ok := t.Nodes[nodeID]
	if !ok {
		return
	}
	n.Score = score
	n.VisitCount++

	if best, ok := t.Nodes[t.BestNodeID]; !ok || score > best.Score {
		t.BestNodeID = nodeID
	}

	for cur := n; cur.ParentID != ""; {
		parent, ok := t.Nodes[cur.ParentID]
		if !ok {
			break
		}
		parent.VisitCount++
		cur = parent
	}
}

// ExceedsDepth reports whether adding one more generation under parentID
// would exceed maxDepth (§4.8 Depth guard, invariant I6).
func ExceedsDepth(t *models.Tree, parentID string, maxDepth int) bool {
	return t.Depth(parentID)+1 > maxDepth
}

// CompletedNodes returns every node in terminal-success state
// (models.NodeCompleted), excluding the root.
func CompletedNodes(t *models.Tree) []*models.Node {
	var out []*models.Node
	for id, n := range t.Nodes {
		if id == t.RootID {
			continue
		}
		if n.Status == models.NodeCompleted {
			out = append(out, n)
		}
	}
	return out
}

// FailedNodes returns every node in models.NodeFailed status.
func FailedNodes(t *models.Tree) []*models.Node {
	var out []*models.Node
	for _, n := range t.Nodes {
		if n.Status == models.NodeFailed {
			out = append(out, n)
		}
	}
	return out
}
