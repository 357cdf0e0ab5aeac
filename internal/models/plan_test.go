package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_UnmarshalJSON_DependsOnCommaString(t *testing.T) {
	raw := []byte(`{"status":"queue","taskType":"impl","priority":2,"dependsOn":"001-a, 002-b"}`)
	var p Plan
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, []string{"001-a", "002-b"}, p.DependsOn)
	assert.Equal(t, StatusQueue, p.Status)
}

func TestPlan_UnmarshalJSON_DependsOnArray(t *testing.T) {
	raw := []byte(`{"status":"queue","taskType":"impl","priority":2,"dependsOn":["001-a"]}`)
	var p Plan
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, []string{"001-a"}, p.DependsOn)
}

func TestPlan_IsCompleted(t *testing.T) {
	for _, status := range []string{StatusDone, StatusCompleted, StatusMerged, StatusPRCreated, StatusComplete} {
		p := Plan{Status: status}
		assert.True(t, p.IsCompleted(), "status %s should be completed", status)
	}
	p := Plan{Status: StatusInProgress}
	assert.False(t, p.IsCompleted())
}

func TestPlan_IsTerminal(t *testing.T) {
	assert.True(t, (&Plan{Status: StatusError}).IsTerminal())
	assert.True(t, (&Plan{Status: StatusComplete}).IsTerminal())
	assert.False(t, (&Plan{Status: StatusInProgress}).IsTerminal())
}

func TestIsImplLike_And_IsDesignClass(t *testing.T) {
	assert.True(t, IsImplLike(TaskImpl))
	assert.False(t, IsImplLike(TaskVerify))
	assert.True(t, IsDesignClass(TaskMCTS))
	assert.False(t, IsDesignClass(TaskImpl))
}

func TestIsPlanningType(t *testing.T) {
	assert.True(t, IsPlanningType(TaskDesign))
	assert.True(t, IsPlanningType(TaskResearch))
	assert.False(t, IsPlanningType(TaskImpl))
}
