package main

import (
	"testing"

	"github.com/akfldk1028/taskdaemon/internal/cmd"
	"github.com/stretchr/testify/assert"
)

func TestRootCommand_BuildsWithoutError(t *testing.T) {
	root := cmd.NewRootCommand()
	assert.Equal(t, "taskdaemon", root.Use)
}
