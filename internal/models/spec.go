package models

import "time"

// Requirements mirrors requirements.json, the immutable brief a spec was
// created from (§3 Spec directory).
type Requirements struct {
	Task              string    `json:"task"`
	ParentSpec        string    `json:"parent_spec,omitempty"`
	Complexity        string    `json:"complexity,omitempty"`
	FilesToModify     []string  `json:"files_to_modify,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedBy         string    `json:"created_by,omitempty"`
}

// SpecDef is the caller-supplied definition for one spec to be created by
// the Spec Factory (§4.5 Create one / Create batch).
type SpecDef struct {
	Task          string
	ParentTask    string
	DependsOn     []string
	Priority      int
	Complexity    string
	TaskType      string
	FilesToModify []string
	Context       map[string]interface{}
}

// CreatedSpec is what Create/CreateBatch returns for each spec it wrote.
type CreatedSpec struct {
	ID   string
	Dir  string
	Plan *Plan
}
