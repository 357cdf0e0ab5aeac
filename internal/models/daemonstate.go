package models

import "time"

// DaemonState is the durable snapshot persisted at
// .auto-claude/specs/.daemon_state.json (§3 Daemon state, invariant I9).
type DaemonState struct {
	RecoveryCounts  map[string]int      `json:"recovery_counts"`
	ErrorCounts     map[string]int      `json:"error_counts"`
	LastErrors      map[string]string   `json:"last_errors"`
	CompletedTasks  []string            `json:"completed_tasks"`
	TaskHierarchy   map[string][]string `json:"task_hierarchy"`
	StartedAt       time.Time           `json:"started_at"`
	LastUpdated     time.Time           `json:"last_updated"`

	// completedSet is the O(1) shadow set of CompletedTasks; not persisted.
	completedSet map[string]bool `json:"-"`
}

// NewDaemonState returns an empty, ready-to-use state snapshot.
func NewDaemonState() *DaemonState {
	return &DaemonState{
		RecoveryCounts: make(map[string]int),
		ErrorCounts:    make(map[string]int),
		LastErrors:     make(map[string]string),
		CompletedTasks: nil,
		TaskHierarchy:  make(map[string][]string),
		StartedAt:      time.Time{},
		completedSet:   make(map[string]bool),
	}
}

// RebuildIndex reconstructs the O(1) completedSet from CompletedTasks; call
// after loading a DaemonState from JSON.
func (s *DaemonState) RebuildIndex() {
	s.completedSet = make(map[string]bool, len(s.CompletedTasks))
	for _, id := range s.CompletedTasks {
		s.completedSet[id] = true
	}
	if s.RecoveryCounts == nil {
		s.RecoveryCounts = make(map[string]int)
	}
	if s.ErrorCounts == nil {
		s.ErrorCounts = make(map[string]int)
	}
	if s.LastErrors == nil {
		s.LastErrors = make(map[string]string)
	}
	if s.TaskHierarchy == nil {
		s.TaskHierarchy = make(map[string][]string)
	}
}

// IsCompleted is the O(1) membership test backing State Store's is_completed.
func (s *DaemonState) IsCompleted(id string) bool {
	return s.completedSet[id]
}

// MarkCompleted appends id to CompletedTasks (idempotently) and updates the
// shadow set (invariant I2: never re-added).
func (s *DaemonState) MarkCompleted(id string) {
	if s.completedSet == nil {
		s.completedSet = make(map[string]bool)
	}
	if s.completedSet[id] {
		return
	}
	s.completedSet[id] = true
	s.CompletedTasks = append(s.CompletedTasks, id)
}

// CompletedIDs returns a snapshot slice of every completed spec ID, in the
// order they were marked.
func (s *DaemonState) CompletedIDs() []string {
	out := make([]string, len(s.CompletedTasks))
	copy(out, s.CompletedTasks)
	return out
}

// AddChild records a parent->child hierarchy edge.
func (s *DaemonState) AddChild(parent, child string) {
	for _, existing := range s.TaskHierarchy[parent] {
		if existing == child {
			return
		}
	}
	s.TaskHierarchy[parent] = append(s.TaskHierarchy[parent], child)
}
