package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".daemon_state.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestStore_MarkCompleted_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MarkCompleted("001-impl"))
	require.NoError(t, s.MarkCompleted("001-impl"))

	assert.True(t, s.IsCompleted("001-impl"))
	assert.Len(t, s.Snapshot().CompletedTasks, 1)
}

func TestStore_ReloadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".daemon_state.json")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.MarkCompleted("001-impl"))

	s2, err := Open(path)
	require.NoError(t, err)
	assert.True(t, s2.IsCompleted("001-impl"))
}

func TestStore_AreDependenciesMet_ExactMatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MarkCompleted("001-impl"))
	assert.True(t, s.AreDependenciesMet([]string{"001-impl"}))
	assert.False(t, s.AreDependenciesMet([]string{"002-missing"}))
}

func TestStore_AreDependenciesMet_BareNumberMatchesAnySiblingWithPrefix(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MarkCompleted("002-backend-api-module"))
	assert.True(t, s.AreDependenciesMet([]string{"2"}))
	assert.True(t, s.AreDependenciesMet([]string{"002"}))
}

func TestStore_AreDependenciesMet_PaddedPrefixPlusFullString(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MarkCompleted("002-backend-api-module"))
	assert.True(t, s.AreDependenciesMet([]string{"002-backend-api-module"}))
	assert.False(t, s.AreDependenciesMet([]string{"002-frontend-ui"}))
}

func TestStore_AreDependenciesMet_GenericPrefixMatchRequiresThreeChars(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MarkCompleted("verify-001-impl"))
	assert.True(t, s.AreDependenciesMet([]string{"verify-001"}))
	assert.False(t, s.AreDependenciesMet([]string{"ve"}))
}

func TestStore_RecoveryCount_MonotonicallyIncreases(t *testing.T) {
	s := openTestStore(t)
	n, err := s.IncrementRecoveryCount("001-impl")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementRecoveryCount("001-impl")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.ResetRecoveryCount("001-impl"))
	assert.Equal(t, 0, s.GetRecoveryCount("001-impl"))
}

func TestStore_RecordError_And_LastError(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordError("001-impl", "boom"))

	text, ok := s.LastError("001-impl")
	require.True(t, ok)
	assert.Equal(t, "boom", text)
}

func TestStore_AddChild(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddChild("001-design", "002-backend"))
	require.NoError(t, s.AddChild("001-design", "003-frontend"))
	require.NoError(t, s.AddChild("001-design", "002-backend")) // duplicate, no-op

	assert.ElementsMatch(t, []string{"002-backend", "003-frontend"}, s.Children("001-design"))
}
