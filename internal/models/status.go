package models

import "time"

// Stats summarizes the daemon's current workload (§6 Status file).
type Stats struct {
	Running   int `json:"running"`
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
}

// StatusSnapshot is the atomic status file written by the Status Publisher
// (§4.9, §6 Status file).
type StatusSnapshot struct {
	ProjectDir   string                `json:"project_dir"`
	Running      bool                  `json:"running"`
	StartedAt    time.Time             `json:"started_at"`
	Config       map[string]interface{} `json:"config"`
	RunningTasks map[string]TaskState  `json:"running_tasks"`
	QueuedTasks  []QueuedTaskView      `json:"queued_tasks"`
	Stats        Stats                 `json:"stats"`
	Timestamp    time.Time             `json:"timestamp"`
	WSPort       int                   `json:"ws_port,omitempty"`
}

// QueuedTaskView is the externally visible projection of a QueuedTask.
type QueuedTaskView struct {
	SpecID   string `json:"spec_id"`
	Priority int    `json:"priority"`
	TaskType string `json:"task_type"`
}

// PushMessage is one message sent over the optional WebSocket push channel
// (§6 Push channel).
type PushMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	PushTypeDaemonStatus = "daemon_status"
	PushTypeTaskStarted  = "task_started"
	PushTypeTaskComplete = "task_completed"
	PushTypeTaskQueued   = "task_queued"
)
