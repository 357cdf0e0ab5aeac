package daemon

import (
	"testing"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
	"github.com/stretchr/testify/assert"
)

func task(id string, priority int, queuedAt time.Time) *models.QueuedTask {
	return &models.QueuedTask{SpecID: id, Priority: priority, QueuedAt: queuedAt}
}

func TestQueue_PopReadyOrdersByPriorityThenQueuedAt(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Push(task("low", models.PriorityLow, now))
	q.Push(task("critical", models.PriorityCritical, now.Add(time.Second)))
	q.Push(task("high", models.PriorityHigh, now))

	always := func(*models.QueuedTask) bool { return true }

	first := q.PopReady(always)
	assert.Equal(t, "critical", first.SpecID)

	second := q.PopReady(always)
	assert.Equal(t, "high", second.SpecID)

	third := q.PopReady(always)
	assert.Equal(t, "low", third.SpecID)

	assert.Nil(t, q.PopReady(always))
}

func TestQueue_PopReadySkipsNotReadyEntries(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Push(task("blocked", models.PriorityCritical, now))
	q.Push(task("ready", models.PriorityLow, now))

	ready := func(t *models.QueuedTask) bool { return t.SpecID == "ready" }
	got := q.PopReady(ready)
	assert.Equal(t, "ready", got.SpecID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PushReplacesExistingEntryForSameSpec(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Push(task("a", models.PriorityLow, now))
	q.Push(task("a", models.PriorityCritical, now))

	assert.Equal(t, 1, q.Len())
	got := q.PopReady(func(*models.QueuedTask) bool { return true })
	assert.Equal(t, models.PriorityCritical, got.Priority)
}

func TestQueue_EvictRemovesEntry(t *testing.T) {
	q := NewQueue()
	q.Push(task("a", models.PriorityLow, time.Now()))
	q.Evict("a")
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Contains("a"))
}

func TestQueue_SnapshotDoesNotMutate(t *testing.T) {
	q := NewQueue()
	q.Push(task("a", models.PriorityLow, time.Now()))
	snap := q.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, 1, q.Len())
}
