package agentexec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_StreamLinesAndExitCode(t *testing.T) {
	cmd := Command{Path: "/bin/sh", Args: []string{"-c", "echo one; echo two; exit 0"}}
	p, err := Spawn(cmd)
	require.NoError(t, err)

	var lines []string
	require.NoError(t, p.StreamLines(func(line string) {
		lines = append(lines, strings.TrimSpace(line))
	}))

	assert.Equal(t, 0, p.Wait())
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestSpawn_NonZeroExit(t *testing.T) {
	cmd := Command{Path: "/bin/sh", Args: []string{"-c", "exit 7"}}
	p, err := Spawn(cmd)
	require.NoError(t, err)
	require.NoError(t, p.StreamLines(func(string) {}))
	assert.Equal(t, 7, p.Wait())
}

func TestSpawn_KillStopsLongRunningProcess(t *testing.T) {
	cmd := Command{Path: "/bin/sh", Args: []string{"-c", "sleep 30"}}
	p, err := Spawn(cmd)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = p.StreamLines(func(string) {})
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Kill(ctx, 50*time.Millisecond)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("StreamLines did not unblock after Kill")
	}
}
