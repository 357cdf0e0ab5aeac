package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/agentexec"
	"github.com/akfldk1028/taskdaemon/internal/config"
	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
	"github.com/akfldk1028/taskdaemon/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) LogError(string)              {}

func writeExitScript(t *testing.T, code int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	body := fmt.Sprintf("#!/bin/sh\nexit %d\n", code)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func writeSleepScript(t *testing.T, seconds int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	body := fmt.Sprintf("#!/bin/sh\nsleep %d\nexit 0\n", seconds)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func newTestDaemon(t *testing.T, scriptPath string) (*Daemon, string) {
	t.Helper()
	specsDir := filepath.Join(t.TempDir(), "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))

	cfg := config.DefaultConfig()
	cfg.SpecsDir = specsDir
	cfg.MaxConcurrentTasks = 2
	cfg.CheckInterval = 30 * time.Millisecond
	cfg.StuckTimeout = 10 * time.Hour // disabled unless a test overrides it
	cfg.KillGracePeriod = 50 * time.Millisecond
	cfg.Executor.PythonPath = "/bin/sh"
	cfg.Executor.DefaultScript = scriptPath

	st, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	reg := agentexec.NewRegistry()
	d, err := New(cfg, st, reg, nopLogger{}, nil)
	require.NoError(t, err)
	return d, specsDir
}

func eventuallyPlan(t *testing.T, dir string, want func(*models.Plan) bool) *models.Plan {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		plan, err := specfactory.ReadPlan(dir)
		if err == nil && want(plan) {
			return plan
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for plan condition in %s", dir)
	return nil
}

func TestDaemon_DispatchSucceedsAndQueuesAutoVerify(t *testing.T) {
	script := writeExitScript(t, 0)
	d, specsDir := newTestDaemon(t, script)

	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "Build thing", TaskType: models.TaskImpl})
	require.NoError(t, err)

	task := &models.QueuedTask{SpecID: cs.ID, SpecDir: cs.Dir, TaskType: models.TaskImpl}
	d.dispatch(task)

	eventuallyPlan(t, cs.Dir, func(p *models.Plan) bool { return p.Status == models.StatusInProgress })

	entries, err := os.ReadDir(specsDir)
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ = os.ReadDir(specsDir)
		if len(entries) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, len(entries), 2, "expected an auto-verify sibling spec to be created")
}

func TestDaemon_DispatchFailureRecordsError(t *testing.T) {
	script := writeExitScript(t, 1)
	d, specsDir := newTestDaemon(t, script)

	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "Will fail", TaskType: models.TaskImpl})
	require.NoError(t, err)

	task := &models.QueuedTask{SpecID: cs.ID, SpecDir: cs.Dir, TaskType: models.TaskImpl}
	d.dispatch(task)

	plan := eventuallyPlan(t, cs.Dir, func(p *models.Plan) bool { return p.Status == models.StatusError })
	assert.Contains(t, plan.LastError, "exit code 1")

	lastErr, ok := d.store.LastError(cs.ID)
	assert.True(t, ok)
	assert.Contains(t, lastErr, "exit code 1")
}

func TestDaemon_RecoverKillsAndRequeuesStuckTask(t *testing.T) {
	script := writeSleepScript(t, 30)
	d, specsDir := newTestDaemon(t, script)

	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "Hangs", TaskType: models.TaskImpl})
	require.NoError(t, err)

	task := &models.QueuedTask{SpecID: cs.ID, SpecDir: cs.Dir, TaskType: models.TaskImpl}
	d.dispatch(task)

	// Wait for the process to actually be tracked as running.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		_, running := d.running[cs.ID]
		d.mu.Unlock()
		if running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Force staleness without waiting out a realistic StuckTimeout.
	d.cfg.StuckTimeout = time.Millisecond
	d.mu.Lock()
	entry := d.running[cs.ID]
	entry.state.LastUpdate = time.Now().Add(-time.Hour)
	d.mu.Unlock()

	d.checkStuck()

	eventuallyPlan(t, cs.Dir, func(p *models.Plan) bool { return p.Status == models.StatusQueue })

	assert.Equal(t, 1, d.store.GetRecoveryCount(cs.ID))
}

func TestDaemon_AutoVerifyRespectsCap(t *testing.T) {
	script := writeExitScript(t, 0)
	d, specsDir := newTestDaemon(t, script)
	d.cfg.AutoVerifyCap = 2

	f := specfactory.New(specsDir)
	cs, err := f.CreateOne(models.SpecDef{Task: "Parent impl", TaskType: models.TaskImpl})
	require.NoError(t, err)

	require.NoError(t, d.queueAutoVerify(cs.ID))
	require.NoError(t, d.queueAutoVerify(cs.ID))
	require.NoError(t, d.queueAutoVerify(cs.ID)) // third call is a no-op past the cap

	n, err := d.countVerifySiblings(cs.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
