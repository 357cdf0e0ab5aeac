package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommand_RegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "taskdaemon", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["validate"])
	assert.True(t, names["version"])
}
