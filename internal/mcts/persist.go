package mcts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// TreeFileName is the on-disk name of the persisted tree (§3 Spec directory).
const TreeFileName = "mcts_tree.json"

// TreePath returns the tree file path under specDir.
func TreePath(specDir string) string {
	return filepath.Join(specDir, TreeFileName)
}

// Load reads and parses the tree persisted at specDir.
func Load(specDir string) (*models.Tree, error) {
	data, err := os.ReadFile(TreePath(specDir))
	if err != nil {
		return nil, err
	}
	var t models.Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadOrCreate loads the persisted tree, or creates a fresh one rooted at
// rootID with the given budget if none exists yet (§4.8 Outer loop step 1).
func LoadOrCreate(specDir, rootID string, budget models.Budget) (*models.Tree, error) {
	t, err := Load(specDir)
	if err == nil {
		return t, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return models.NewTree(rootID, budget), nil
}

// Save persists t under specDir via an atomic temp-file-rename, matching
// internal/state's durable-write idiom (§5 Shared-resource policy).
func Save(specDir string, t *models.Tree) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(TreePath(specDir), data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mcts-tree-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
