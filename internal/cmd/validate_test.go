package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommand_RequiresProjectDir(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	assert.Error(t, err)
}

func TestValidateCommand_RunsAgainstEmptyProject(t *testing.T) {
	dir := t.TempDir()
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--project-dir", dir})
	// An empty project has no build system and no capabilities, so only the
	// always-applicable build validator runs and reports itself skipped.
	assert.NoError(t, cmd.Execute())
}
