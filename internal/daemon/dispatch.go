package daemon

import (
	"strconv"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/agentexec"
	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

// dispatch runs §4.4 Dispatch steps 1-5 synchronously (build + spawn), then
// hands the rest of the lifecycle to a background goroutine that awaits
// exit and runs steps 6-7.
func (d *Daemon) dispatch(t *models.QueuedTask) {
	plan, err := specfactory.ReadPlan(t.SpecDir)
	if err != nil {
		return
	}
	// Step 1: a concurrently-completed/running plan is skipped.
	if plan.IsTerminal() {
		if plan.IsCompleted() {
			_ = d.store.MarkCompleted(t.SpecID)
		}
		return
	}
	if plan.Status == models.StatusInProgress {
		return
	}

	if t.TaskType == models.TaskMCTS && d.mcts != nil {
		d.dispatchMCTS(t, plan)
		return
	}

	// Step 2: execution mode is decided inside BuildCommand from the
	// registry entry (or models.IsPlanningType for unregistered types).
	opts := agentexec.BuildOptions{
		PythonPath:      d.cfg.Executor.PythonPath,
		DefaultScript:   d.cfg.Executor.DefaultScript,
		UseExternalCLI:  d.cfg.Executor.UseExternalCLI,
		ExternalCLIPath: d.cfg.Executor.ExternalCLIPath,
		ProjectDir:      t.SpecDir,
	}

	// Step 3: build + spawn.
	cmd := agentexec.BuildCommand(t.SpecID, t.TaskType, d.reg, opts)
	proc, err := agentexec.Spawn(cmd)
	if err != nil {
		d.log.LogError("spawn " + t.SpecID + ": " + err.Error())
		_ = d.store.RecordError(t.SpecID, err.Error())
		plan.Status = models.StatusError
		plan.LastError = err.Error()
		_ = specfactory.WritePlan(t.SpecDir, plan)
		return
	}

	// Step 4: record TaskState, transition plan to in_progress.
	now := time.Now()
	ts := &models.TaskState{
		SpecID:     t.SpecID,
		SpecDir:    t.SpecDir,
		PID:        proc.PID(),
		TaskType:   t.TaskType,
		StartedAt:  now,
		LastUpdate: now,
	}

	d.mu.Lock()
	d.running[t.SpecID] = &runningEntry{state: ts, process: proc}
	d.mu.Unlock()

	plan.Status = models.StatusInProgress
	plan.UpdatedAt = now
	_ = specfactory.WritePlan(t.SpecDir, plan)
	d.notify()

	go d.awaitExit(t, proc, ts)
}

// awaitExit runs Dispatch step 5 (liveness streaming) then step 6-7
// (completion handling + status signal) once the process exits.
func (d *Daemon) awaitExit(t *models.QueuedTask, proc *agentexec.Process, ts *models.TaskState) {
	doneStreaming := make(chan struct{})
	go func() {
		defer close(doneStreaming)
		_ = proc.StreamLines(func(line string) {
			d.mu.Lock()
			ts.LastUpdate = time.Now()
			d.mu.Unlock()
		})
	}()

	exitCode := proc.Wait()
	<-doneStreaming

	d.mu.Lock()
	entry, stillTracked := d.running[t.SpecID]
	recovering := stillTracked && entry.state.Recovering
	delete(d.running, t.SpecID)
	d.mu.Unlock()

	if recovering {
		// Recover already reset and re-enqueued this spec; skip the normal
		// post-exit completion logic (§4.4 Recover step 2 race guard).
		return
	}

	d.handleExit(t, exitCode)
	d.notify()
	d.wake()
}

// handleExit implements Dispatch step 6.
func (d *Daemon) handleExit(t *models.QueuedTask, exitCode int) {
	plan, err := specfactory.ReadPlan(t.SpecDir)
	if err != nil {
		return
	}

	// Never overwrite a complete status even on non-zero exit: design tasks
	// may have spawned children and then failed cleanup.
	if plan.IsCompleted() {
		_ = d.store.MarkCompleted(t.SpecID)
		return
	}

	if exitCode == 0 {
		if models.IsImplLike(t.TaskType) {
			if err := d.queueAutoVerify(t.SpecID); err != nil {
				d.log.Warnf("auto-verify for %s: %v", t.SpecID, err)
			}
		} else if t.TaskType == models.TaskErrorCheck && plan.ParentTask != "" {
			if err := d.requeueVerifyOnParent(plan.ParentTask); err != nil {
				d.log.Warnf("re-queue verify on parent %s: %v", plan.ParentTask, err)
			}
		}
		_ = d.store.ResetRecoveryCount(t.SpecID)
		return
	}

	plan.Status = models.StatusError
	plan.LastError = "exit code " + strconv.Itoa(exitCode)
	plan.UpdatedAt = time.Now()
	_ = specfactory.WritePlan(t.SpecDir, plan)
	_ = d.store.RecordError(t.SpecID, plan.LastError)
}
