package mcts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

func budget() models.Budget {
	return models.Budget{MaxWallSeconds: 3600, MaxIterations: 20, MaxBranches: 10}
}

func TestSelectExpandable_PrefersUnvisitedNode(t *testing.T) {
	tree := models.NewTree("root", budget())
	visited := tree.AddChild("visited", "root", models.ActionDraft)
	visited.Status = models.NodeCompleted
	visited.Score = 0.5
	visited.VisitCount = 3

	unvisited := tree.AddChild("unvisited", "root", models.ActionDraft)
	unvisited.Status = models.NodeCompleted
	unvisited.Score = 0.1

	got := SelectExpandable(tree)
	require.NotNil(t, got)
	assert.Equal(t, "unvisited", got.ID)
}

func TestSelectExpandable_SkipsUnevaluatedAndIncompleteNodes(t *testing.T) {
	tree := models.NewTree("root", budget())
	pending := tree.AddChild("pending", "root", models.ActionDraft)
	pending.Status = models.NodeRunning

	assert.Nil(t, SelectExpandable(tree))
	_ = pending
}

func TestSelectExpandable_HigherScoreWinsAmongVisitedNodes(t *testing.T) {
	tree := models.NewTree("root", budget())
	tree.Budget.SpentIterations = 10

	low := tree.AddChild("low", "root", models.ActionDraft)
	low.Status = models.NodeCompleted
	low.Score = 0.2
	low.VisitCount = 5

	high := tree.AddChild("high", "root", models.ActionDraft)
	high.Status = models.NodeCompleted
	high.Score = 0.9
	high.VisitCount = 5

	got := SelectExpandable(tree)
	require.NotNil(t, got)
	assert.Equal(t, "high", got.ID)
}

func TestBackpropagate_SetsScoreAndIncrementsVisitCounts(t *testing.T) {
	tree := models.NewTree("root", budget())
	mid := tree.AddChild("mid", "root", models.ActionDraft)
	leaf := tree.AddChild("leaf", "mid", models.ActionDraft)

	Backpropagate(tree, "leaf", 0.8)

	assert.Equal(t, 0.8, leaf.Score)
	assert.Equal(t, 1, leaf.VisitCount)
	assert.Equal(t, 1, mid.VisitCount)
	assert.Equal(t, "leaf", tree.BestNodeID)
}

func TestBackpropagate_BestNodeOnlyUpdatesOnStrictImprovement(t *testing.T) {
	tree := models.NewTree("root", budget())
	tree.Nodes[tree.RootID].Score = 0.5
	a := tree.AddChild("a", "root", models.ActionDraft)
	b := tree.AddChild("b", "root", models.ActionDraft)

	Backpropagate(tree, "a", 0.5)
	assert.Equal(t, tree.RootID, tree.BestNodeID, "equal score keeps the existing best (first-write-wins)")

	Backpropagate(tree, "b", 0.9)
	assert.Equal(t, "b", tree.BestNodeID)
	_ = a
}

func TestExceedsDepth(t *testing.T) {
	tree := models.NewTree("root", budget())
	child := tree.AddChild("child", "root", models.ActionDraft)
	tree.AddChild("grandchild", "child", models.ActionDraft)

	assert.False(t, ExceedsDepth(tree, "root", 2))
	assert.False(t, ExceedsDepth(tree, child.ID, 2))
	assert.True(t, ExceedsDepth(tree, "grandchild", 2))
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	tree := models.NewTree("root", budget())
	tree.AddChild("a", "root", models.ActionDraft)

	require.NoError(t, Save(dir, tree))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, tree.RootID, loaded.RootID)
	assert.Contains(t, loaded.Nodes, "a")

	assert.FileExists(t, filepath.Join(dir, TreeFileName))
}

func TestLoadOrCreate_CreatesFreshTreeWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	tree, err := LoadOrCreate(dir, "root", budget())
	require.NoError(t, err)
	assert.Equal(t, "root", tree.RootID)
	assert.Equal(t, models.NodeCompleted, tree.Nodes["root"].Status)
}
