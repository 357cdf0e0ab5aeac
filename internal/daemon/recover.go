package daemon

import (
	"context"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
)

// checkStuck scans every running task for a liveness gap exceeding
// cfg.StuckTimeout and recovers it (§4.4 Stuck detection).
func (d *Daemon) checkStuck() {
	now := time.Now()

	d.mu.Lock()
	var stuck []string
	for id, entry := range d.running {
		if entry.state.Recovering {
			continue
		}
		if now.Sub(entry.state.LastUpdate) > d.cfg.StuckTimeout {
			stuck = append(stuck, id)
		}
	}
	d.mu.Unlock()

	for _, id := range stuck {
		d.recover(id)
	}
}

// recover implements §4.4 Recover.
func (d *Daemon) recover(specID string) {
	d.mu.Lock()
	entry, ok := d.running[specID]
	if !ok || entry.state.Recovering {
		d.mu.Unlock()
		return
	}
	entry.state.Recovering = true
	proc := entry.process
	cancelMCTS := entry.cancel
	specDir := entry.state.SpecDir
	d.mu.Unlock()

	// Step 1: increment recovery count; past max, mark terminal error.
	n, err := d.store.IncrementRecoveryCount(specID)
	if err != nil {
		d.log.Warnf("increment recovery count for %s: %v", specID, err)
	}
	if n > d.cfg.MaxRecovery {
		d.finalizeMaxRecovery(specID, specDir)
		// proc.Wait() in awaitExit will still return once Kill below runs;
		// awaitExit's Recovering check skips handleExit, leaving our
		// terminal error status intact.
	}

	if proc != nil {
		// Step 3: kill the process tree; this closes stdout and unblocks any
		// blocked readline, which makes awaitExit's StreamLines return.
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.KillGracePeriod+time.Second)
		proc.Kill(ctx, d.cfg.KillGracePeriod)
		cancel()
	} else if cancelMCTS != nil {
		// An in-process MCTSRunner (§4.8) has no process tree; canceling its
		// context unblocks awaitMCTS the same way Kill unblocks awaitExit.
		cancelMCTS()
	}

	// Step 4: bounded cleanup wait, interruptible by shutdown.
	select {
	case <-time.After(200 * time.Millisecond):
	case <-d.stopCh:
	}

	// awaitExit's own goroutine removes specID from d.running once
	// proc.Wait() returns (unblocked by the Kill above) and sees
	// Recovering=true, skipping handleExit so this reset isn't clobbered.

	// Step 5: reset the plan to queue and re-enqueue.
	d.resetAndRequeue(specID, specDir)
	d.notify()
}

func (d *Daemon) finalizeMaxRecovery(specID, specDir string) {
	plan, err := specfactory.ReadPlan(specDir)
	if err != nil {
		return
	}
	plan.Status = models.StatusError
	plan.LastError = "Max recovery"
	plan.UpdatedAt = time.Now()
	if err := specfactory.WritePlan(specDir, plan); err != nil {
		d.log.Warnf("write terminal error for %s: %v", specID, err)
		return
	}
	_ = d.store.RecordError(specID, plan.LastError)
	d.log.LogError("spec " + specID + " exceeded max recovery attempts, marked error")
}

func (d *Daemon) resetAndRequeue(specID, specDir string) {
	plan, err := specfactory.ReadPlan(specDir)
	if err != nil {
		return
	}
	if plan.IsTerminal() {
		return
	}
	plan.Status = models.StatusQueue
	plan.UpdatedAt = time.Now()
	if err := specfactory.WritePlan(specDir, plan); err != nil {
		d.log.Warnf("reset %s to queue: %v", specID, err)
		return
	}
	d.enqueueFromDisk(specID, specDir)
}
