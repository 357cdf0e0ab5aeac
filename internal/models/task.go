package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NormalizeDependsOn converts a raw dependsOn JSON value into a []string.
// Agents have been observed to write dependsOn as a JSON array, a
// comma-separated string, or a JSON-encoded string containing an array
// (original Python _normalize_depends_on); all three are tolerated.
func NormalizeDependsOn(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asArray []interface{}
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return stringifyDeps(asArray)
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return nil, fmt.Errorf("dependsOn: unsupported format: %s", raw)
	}

	trimmed := strings.TrimSpace(asString)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var nested []interface{}
		if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
			return stringifyDeps(nested)
		}
	}

	parts := strings.Split(trimmed, ",")
	deps := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			deps = append(deps, p)
		}
	}
	return deps, nil
}

func stringifyDeps(raw []interface{}) ([]string, error) {
	deps := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			if t != "" {
				deps = append(deps, t)
			}
		case float64:
			if t == float64(int64(t)) {
				deps = append(deps, strconv.FormatInt(int64(t), 10))
			} else {
				deps = append(deps, strconv.FormatFloat(t, 'f', -1, 64))
			}
		default:
			return nil, fmt.Errorf("dependsOn: unsupported element type %T", v)
		}
	}
	return deps, nil
}

// SpecNode is the minimal shape HasCyclicDependencies needs: an ID and the
// raw dependsOn list as written in its plan.
type SpecNode struct {
	ID        string
	DependsOn []string
}

// HasCyclicDependencies detects circular dependsOn references among a set of
// specs using DFS with three-color marking (white/gray/black), the same
// algorithm the teacher uses for multi-task plans, applied here to sibling
// spec IDs instead of task numbers.
func HasCyclicDependencies(specs []SpecNode) bool {
	graph := make(map[string][]string)
	known := make(map[string]bool)

	for _, s := range specs {
		known[s.ID] = true
		if _, ok := graph[s.ID]; !ok {
			graph[s.ID] = nil
		}
	}

	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return true
			}
			if known[dep] {
				graph[dep] = append(graph[dep], s.ID)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(known))
	for id := range known {
		colors[id] = white
	}

	var dfs func(string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		for _, next := range graph[node] {
			if colors[next] == gray {
				return true
			}
			if colors[next] == white && dfs(next) {
				return true
			}
		}
		colors[node] = black
		return false
	}

	for id := range known {
		if colors[id] == white {
			if dfs(id) {
				return true
			}
		}
	}
	return false
}
