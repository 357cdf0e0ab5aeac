package models

import "time"

// QueuedTask is one entry in the scheduler's priority queue (§4.4 Queue).
type QueuedTask struct {
	SpecID     string
	SpecDir    string
	Priority   int
	TaskType   string
	DependsOn  []string
	ParentTask string
	QueuedAt   time.Time
}

// Less orders the queue: lower priority first, ties broken by earlier
// QueuedAt (P5 Priority ordering).
func (q *QueuedTask) Less(other *QueuedTask) bool {
	if q.Priority != other.Priority {
		return q.Priority < other.Priority
	}
	return q.QueuedAt.Before(other.QueuedAt)
}

// TaskState is the daemon's live bookkeeping record for a running process
// (§4.4 Dispatch step 4, §6 status file running_tasks).
type TaskState struct {
	SpecID     string    `json:"spec_id"`
	SpecDir    string    `json:"-"`
	PID        int       `json:"pid"`
	TaskType   string    `json:"task_type"`
	StartedAt  time.Time `json:"started_at"`
	LastUpdate time.Time `json:"last_update"`
	Recovering bool      `json:"-"`
}
