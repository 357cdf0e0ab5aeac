package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDependsOn_Array(t *testing.T) {
	deps, err := NormalizeDependsOn(json.RawMessage(`["001-a", "002-b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"001-a", "002-b"}, deps)
}

func TestNormalizeDependsOn_CommaString(t *testing.T) {
	deps, err := NormalizeDependsOn(json.RawMessage(`"001-a, 002-b"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"001-a", "002-b"}, deps)
}

func TestNormalizeDependsOn_JSONEncodedString(t *testing.T) {
	deps, err := NormalizeDependsOn(json.RawMessage(`"[\"001-a\", \"002-b\"]"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"001-a", "002-b"}, deps)
}

func TestNormalizeDependsOn_NumericElements(t *testing.T) {
	deps, err := NormalizeDependsOn(json.RawMessage(`[2, 3]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, deps)
}

func TestNormalizeDependsOn_Empty(t *testing.T) {
	deps, err := NormalizeDependsOn(nil)
	require.NoError(t, err)
	assert.Nil(t, deps)
}

func TestHasCyclicDependencies_NoCycle(t *testing.T) {
	specs := []SpecNode{
		{ID: "001-a"},
		{ID: "002-b", DependsOn: []string{"001-a"}},
		{ID: "003-c", DependsOn: []string{"002-b"}},
	}
	assert.False(t, HasCyclicDependencies(specs))
}

func TestHasCyclicDependencies_DirectCycle(t *testing.T) {
	specs := []SpecNode{
		{ID: "001-a", DependsOn: []string{"002-b"}},
		{ID: "002-b", DependsOn: []string{"001-a"}},
	}
	assert.True(t, HasCyclicDependencies(specs))
}

func TestHasCyclicDependencies_SelfReference(t *testing.T) {
	specs := []SpecNode{
		{ID: "001-a", DependsOn: []string{"001-a"}},
	}
	assert.True(t, HasCyclicDependencies(specs))
}

func TestHasCyclicDependencies_DanglingRefIsNotACycle(t *testing.T) {
	specs := []SpecNode{
		{ID: "001-a", DependsOn: []string{"999-missing"}},
	}
	assert.False(t, HasCyclicDependencies(specs))
}
