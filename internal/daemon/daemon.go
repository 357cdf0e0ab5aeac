// Package daemon implements the Scheduler / Daemon Core (C4): the
// priority+dependency-gated dispatch loop, concurrency limiting, stuck
// detection and recovery, and the auto-verify chain.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/agentexec"
	"github.com/akfldk1028/taskdaemon/internal/config"
	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
	"github.com/akfldk1028/taskdaemon/internal/state"
	"github.com/akfldk1028/taskdaemon/internal/watcher"
)

// Logger is the subset of internal/logger.ConsoleLogger the daemon needs;
// kept narrow so callers can substitute a test double.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	LogError(message string)
}

// StatusHook is notified after every state transition so the Status
// Publisher (C9) can push a fresh snapshot (§4.4 Dispatch step 7).
type StatusHook func()

// runningEntry is the daemon's live bookkeeping for one dispatched spec.
// Exactly one of process/cancel is set: process for an ordinary spawned
// agent, cancel for an in-process MCTSRunner (§4.8).
type runningEntry struct {
	state   *models.TaskState
	process *agentexec.Process
	cancel  context.CancelFunc
}

// Daemon is the Scheduler / Daemon Core (§4.4).
type Daemon struct {
	cfg     *config.Config
	store   *state.Store
	watch   *watcher.Watcher
	reg     *agentexec.Registry
	factory *specfactory.Factory
	log     Logger
	onEvent StatusHook
	mcts    MCTSRunner

	mu        sync.Mutex
	lifecycle LifecycleState
	queue     *Queue
	running   map[string]*runningEntry
	startedAt time.Time

	stopCh chan struct{}
	doneCh chan struct{}
	wakeCh chan struct{}
}

// New wires a Daemon from its components. cfg.SpecsDir is the directory
// watched, scheduled, and repaired.
func New(cfg *config.Config, store *state.Store, reg *agentexec.Registry, log Logger, onEvent StatusHook) (*Daemon, error) {
	d := &Daemon{
		cfg:       cfg,
		store:     store,
		reg:       reg,
		factory:   specfactory.New(cfg.SpecsDir),
		log:       log,
		onEvent:   onEvent,
		lifecycle: StateStopped,
		queue:     NewQueue(),
		running:   make(map[string]*runningEntry),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		wakeCh:    make(chan struct{}, 1),
	}

	w, err := watcher.New(cfg.SpecsDir, d.onPlanChanged)
	if err != nil {
		return nil, fmt.Errorf("daemon: create watcher: %w", err)
	}
	d.watch = w
	return d, nil
}

// Lifecycle reports the daemon's current lifecycle state.
func (d *Daemon) Lifecycle() LifecycleState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lifecycle
}

// Start transitions stopped -> starting -> running, performs the startup
// scan/repair pass (§4.4 Scanning and repair), and enters the scheduler
// loop. Start blocks until Stop is called or the loop exits on its own.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.lifecycle != StateStopped {
		d.mu.Unlock()
		return fmt.Errorf("daemon: Start called while in state %s", d.lifecycle)
	}
	d.lifecycle = StateStarting
	d.mu.Unlock()

	if err := d.startupScan(); err != nil {
		return fmt.Errorf("daemon: startup scan: %w", err)
	}

	if err := d.watch.Start(); err != nil {
		return fmt.Errorf("daemon: start watcher: %w", err)
	}

	d.mu.Lock()
	d.lifecycle = StateRunning
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.notify()

	d.loop()
	return nil
}

// Stop is signal-safe: it only flips a flag and wakes the loop. It must
// never block on joining goroutines from inside a signal handler, per §4.4.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if d.lifecycle == StateStopped || d.lifecycle == StateStopping {
		d.mu.Unlock()
		return
	}
	d.lifecycle = StateStopping
	d.mu.Unlock()

	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}

// Wait blocks until the scheduler loop has fully exited.
func (d *Daemon) Wait() {
	<-d.doneCh
}

func (d *Daemon) isStopping() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

// onPlanChanged is the watcher callback (§4.2 -> §4.4): a debounced plan
// file change re-evaluates readiness.
func (d *Daemon) onPlanChanged(ev watcher.Event) {
	d.enqueueFromDisk(ev.SpecID, ev.SpecDir)
	d.wake()
}

func (d *Daemon) wake() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

func (d *Daemon) notify() {
	if d.onEvent != nil {
		d.onEvent()
	}
}

// enqueueFromDisk re-reads a spec's plan file and pushes/updates its queue
// entry if it's in a queue-class status, evicting it otherwise.
func (d *Daemon) enqueueFromDisk(specID, specDir string) {
	plan, err := specfactory.ReadPlan(specDir)
	if err != nil {
		return // I1: unreadable/missing plan is invisible to scheduling
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !plan.IsQueueClass() {
		d.queue.Evict(specID)
		if plan.IsCompleted() {
			_ = d.store.MarkCompleted(specID)
		}
		return
	}

	d.queue.Push(&models.QueuedTask{
		SpecID:     specID,
		SpecDir:    specDir,
		Priority:   plan.Priority,
		TaskType:   plan.TaskType,
		DependsOn:  append([]string(nil), plan.DependsOn...),
		ParentTask: plan.ParentTask,
		QueuedAt:   time.Now(),
	})
}

// loop implements the §4.4 Scheduler loop.
func (d *Daemon) loop() {
	defer close(d.doneCh)
	defer d.watch.Stop()

	stuckTicker := time.NewTicker(d.cfg.CheckInterval)
	defer stuckTicker.Stop()

	// pollTicker bounds the wait even absent watcher events, covering
	// dependency edges that resolve without a plan-file write under this
	// spec's own directory (e.g. a sibling completing).
	pollTicker := time.NewTicker(time.Second)
	defer pollTicker.Stop()

	for {
		if d.isStopping() {
			return
		}

		d.tryDispatchReady()

		select {
		case <-d.stopCh:
			return
		case <-d.wakeCh:
		case <-pollTicker.C:
		case <-stuckTicker.C:
			d.checkStuck()
		}
	}
}

// tryDispatchReady dispatches as many ready tasks as the concurrency limit
// allows, per §4.4 Scheduler loop / Dispatch.
func (d *Daemon) tryDispatchReady() {
	for {
		d.mu.Lock()
		if d.cfg.MaxConcurrentTasks > 0 && len(d.running) >= d.cfg.MaxConcurrentTasks {
			d.mu.Unlock()
			return
		}
		task := d.queue.PopReady(d.isReadyLocked)
		d.mu.Unlock()

		if task == nil {
			return
		}
		d.dispatch(task)
	}
}

// isReadyLocked checks dependency-met and re-validates the plan hasn't
// changed status externally (§4.4 "evict stale queue entries").
func (d *Daemon) isReadyLocked(t *models.QueuedTask) bool {
	plan, err := specfactory.ReadPlan(t.SpecDir)
	if err != nil || !plan.IsQueueClass() {
		return false
	}
	return d.store.AreDependenciesMet(t.DependsOn)
}

// startupScan repairs legacy dependency references, then walks every spec
// directory to seed the queue and completion set (§4.4 Scanning and repair).
func (d *Daemon) startupScan() error {
	n, err := d.factory.RepairLegacy()
	if err != nil {
		return err
	}
	if n > 0 {
		d.log.Infof("repaired %d legacy dependency reference(s)", n)
	}

	entries, err := os.ReadDir(d.cfg.SpecsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		specID := e.Name()
		specDir := filepath.Join(d.cfg.SpecsDir, specID)
		plan, err := specfactory.ReadPlan(specDir)
		if err != nil {
			continue
		}
		if plan.IsCompleted() {
			if err := d.store.MarkCompleted(specID); err != nil {
				d.log.Warnf("mark completed %s: %v", specID, err)
			}
			continue
		}
		if plan.IsQueueClass() {
			d.enqueueFromDisk(specID, specDir)
		}
	}
	return nil
}
