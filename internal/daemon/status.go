package daemon

import (
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// Snapshot builds the §6 status-file view of the daemon's current state, for
// the Status Publisher (C9) to write/broadcast. Safe to call concurrently.
func (d *Daemon) Snapshot() models.StatusSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	running := make(map[string]models.TaskState, len(d.running))
	for id, entry := range d.running {
		running[id] = *entry.state
	}

	queued := d.queue.Snapshot()
	queuedViews := make([]models.QueuedTaskView, 0, len(queued))
	for _, t := range queued {
		queuedViews = append(queuedViews, models.QueuedTaskView{
			SpecID:   t.SpecID,
			Priority: t.Priority,
			TaskType: t.TaskType,
		})
	}

	completed := len(d.store.Snapshot().CompletedTasks)

	return models.StatusSnapshot{
		ProjectDir:   d.cfg.SpecsDir,
		Running:      d.lifecycle == StateRunning,
		StartedAt:    d.startedAt,
		Config:       d.configView(),
		RunningTasks: running,
		QueuedTasks:  queuedViews,
		Stats: models.Stats{
			Running:   len(running),
			Queued:    len(queuedViews),
			Completed: completed,
		},
		Timestamp: time.Now(),
	}
}

// configView projects the subset of Config worth surfacing to a status
// observer; it deliberately omits executor/CLI paths.
func (d *Daemon) configView() map[string]interface{} {
	return map[string]interface{}{
		"specs_dir":            d.cfg.SpecsDir,
		"max_concurrent_tasks": d.cfg.MaxConcurrentTasks,
		"max_child_depth":      d.cfg.MaxChildDepth,
		"stuck_timeout":        d.cfg.StuckTimeout.String(),
		"check_interval":       d.cfg.CheckInterval.String(),
	}
}
