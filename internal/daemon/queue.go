package daemon

import (
	"container/heap"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// priorityQueue is a container/heap min-heap over *models.QueuedTask,
// ordered by (*QueuedTask).Less (§4.4 Queue).
type priorityQueue []*models.QueuedTask

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].Less(q[j]) }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(*models.QueuedTask)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Queue wraps priorityQueue with lookup-by-spec-ID and eviction, backing the
// scheduler's "evict stale entries" scan step.
type Queue struct {
	heap  priorityQueue
	index map[string]*models.QueuedTask
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]*models.QueuedTask)}
}

// Push adds t to the queue, replacing any existing entry for the same spec.
func (q *Queue) Push(t *models.QueuedTask) {
	if existing, ok := q.index[t.SpecID]; ok {
		q.removeEntry(existing)
	}
	heap.Push(&q.heap, t)
	q.index[t.SpecID] = t
}

// Len reports the number of queued tasks.
func (q *Queue) Len() int { return q.heap.Len() }

// Contains reports whether specID currently has a queue entry.
func (q *Queue) Contains(specID string) bool {
	_, ok := q.index[specID]
	return ok
}

// Evict removes specID's queue entry, if any, without dispatching it. Used
// when a rescan discovers the plan's status changed externally (§4.4
// Scheduler loop "evict stale queue entries").
func (q *Queue) Evict(specID string) {
	if t, ok := q.index[specID]; ok {
		q.removeEntry(t)
	}
}

func (q *Queue) removeEntry(t *models.QueuedTask) {
	delete(q.index, t.SpecID)
	for i, candidate := range q.heap {
		if candidate == t {
			heap.Remove(&q.heap, i)
			return
		}
	}
}

// PopReady scans the queue in priority order and removes+returns the first
// entry for which ready(t) reports true. Returns nil if none are ready.
// O(|queue|) per call, matching the spec's stated readiness-scan cost.
func (q *Queue) PopReady(ready func(*models.QueuedTask) bool) *models.QueuedTask {
	// heap order isn't a fully sorted slice; take a priority-sorted snapshot
	// to scan in true priority order, then remove the winner from the heap.
	snapshot := append(priorityQueue(nil), q.heap...)
	sortedByPriority(snapshot)

	for _, t := range snapshot {
		if ready(t) {
			q.removeEntry(t)
			return t
		}
	}
	return nil
}

func sortedByPriority(q priorityQueue) {
	// Simple insertion sort: queue sizes are "tens to low hundreds" per spec,
	// so O(n^2) here is fine and keeps this dependency-free.
	for i := 1; i < len(q); i++ {
		for j := i; j > 0 && q[j].Less(q[j-1]); j-- {
			q[j], q[j-1] = q[j-1], q[j]
		}
	}
}

// Snapshot returns every queued task, in priority order, without mutating
// the queue (used by the Status Publisher).
func (q *Queue) Snapshot() []*models.QueuedTask {
	out := append(priorityQueue(nil), q.heap...)
	sortedByPriority(out)
	return out
}
