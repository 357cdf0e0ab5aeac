package daemon

import (
	"context"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

// MCTSRunner executes the MCTS Orchestrator (C8) for a TaskMCTS spec. Unlike
// every other task type there is no external agent to spawn for "mcts" —
// this binary's own internal/orchestrator package is the implementation —
// so a registered runner is driven in-process instead of through
// agentexec.Spawn.
type MCTSRunner interface {
	RunMCTS(ctx context.Context, specID, specDir string) error
}

// SetMCTSRunner wires the in-process MCTS driver. Left nil, TaskMCTS specs
// fall through to the ordinary agentexec dispatch path like any other task
// type.
func (d *Daemon) SetMCTSRunner(r MCTSRunner) {
	d.mcts = r
}

// dispatchMCTS runs the MCTS Orchestrator for t in a background goroutine,
// mirroring dispatch's bookkeeping (running-task registration, plan
// transition, completion handling) but with a cancelable context standing
// in for the child process agentexec would otherwise track.
func (d *Daemon) dispatchMCTS(t *models.QueuedTask, plan *models.Plan) {
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	ts := &models.TaskState{
		SpecID:     t.SpecID,
		SpecDir:    t.SpecDir,
		TaskType:   t.TaskType,
		StartedAt:  now,
		LastUpdate: now,
	}

	d.mu.Lock()
	d.running[t.SpecID] = &runningEntry{state: ts, cancel: cancel}
	d.mu.Unlock()

	plan.Status = models.StatusInProgress
	plan.UpdatedAt = now
	_ = specfactory.WritePlan(t.SpecDir, plan)
	d.notify()

	go d.awaitMCTS(ctx, t)
}

// awaitMCTS runs the orchestrator and then hands the result to the same
// completion path as awaitExit/handleExit: failure marks the plan
// terminal-error; on success RunMCTS has already marked the plan complete,
// so the spec is recorded completed and no auto-verify is queued.
func (d *Daemon) awaitMCTS(ctx context.Context, t *models.QueuedTask) {
	err := d.mcts.RunMCTS(ctx, t.SpecID, t.SpecDir)

	d.mu.Lock()
	entry, stillTracked := d.running[t.SpecID]
	recovering := stillTracked && entry.state.Recovering
	delete(d.running, t.SpecID)
	d.mu.Unlock()

	if recovering {
		return
	}

	if err != nil {
		d.log.LogError("mcts run " + t.SpecID + ": " + err.Error())
		d.handleExit(t, 1)
	} else {
		d.handleExit(t, 0)
	}
	d.notify()
	d.wake()
}
