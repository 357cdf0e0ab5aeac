package validator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	results map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, command string) (string, error) {
	if err, ok := f.results[command]; ok {
		if err != nil {
			return "boom", err
		}
		return "ok", nil
	}
	return "", nil
}

func writeProjectIndex(t *testing.T, projectDir string, svc ServiceEntry) {
	t.Helper()
	dir := filepath.Join(projectDir, ".auto-claude")
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := json.Marshal(map[string]interface{}{
		"services": map[string]ServiceEntry{"app": svc},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project_index.json"), data, 0644))
}

func TestBuildValidator_NoIndexSkips(t *testing.T) {
	dir := t.TempDir()
	result := BuildValidator{}.Validate(context.Background(), Context{ProjectDir: dir, Runner: &fakeRunner{}})
	assert.True(t, result.Passed)
	assert.Equal(t, true, result.Metadata["skipped"])
}

func TestBuildValidator_LintFailureBlocks(t *testing.T) {
	dir := t.TempDir()
	writeProjectIndex(t, dir, ServiceEntry{LintCommand: "lint-fail", TestCommand: "test-ok"})

	runner := &fakeRunner{results: map[string]error{
		"lint-fail": assert.AnError,
		"test-ok":   nil,
	}}
	result := BuildValidator{}.Validate(context.Background(), Context{ProjectDir: dir, Runner: runner})

	assert.False(t, result.Passed)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0].Description, "lint command failed")
}

func TestBuildValidator_BuildFailureIsInformationalOnly(t *testing.T) {
	dir := t.TempDir()
	writeProjectIndex(t, dir, ServiceEntry{BuildCommand: "build-fail", TestCommand: "test-ok"})

	runner := &fakeRunner{results: map[string]error{
		"build-fail": assert.AnError,
		"test-ok":    nil,
	}}
	result := BuildValidator{}.Validate(context.Background(), Context{ProjectDir: dir, Runner: runner})

	assert.True(t, result.Passed)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "minor", string(result.Issues[0].Severity))
}
