// Package watcher implements the Watcher (C2): debounced filesystem
// notifications for implementation_plan.json changes anywhere under a
// specs directory.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PlanFile is the filename the watcher filters events down to.
const PlanFile = "implementation_plan.json"

// Event is what the watcher emits to the scheduler callback.
type Event struct {
	SpecID  string
	SpecDir string
}

// Callback receives debounced plan-change events.
type Callback func(Event)

const (
	defaultDebounceWindow = 2 * time.Second
	debounceMapLimit      = 500
	debounceEntryMaxAge   = 60 * time.Second
)

// Watcher recursively observes a specs directory and debounces bursts of
// change events per spec ID (§4.2).
type Watcher struct {
	specsDir string
	onEvent  Callback
	window   time.Duration

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	lastSeen map[string]time.Time
	stopped  bool
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceWindow overrides the default 2-second debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(w *Watcher) { w.window = d }
}

// New creates a Watcher rooted at specsDir. Start must be called to begin
// watching.
func New(specsDir string, onEvent Callback, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		specsDir: specsDir,
		onEvent:  onEvent,
		window:   defaultDebounceWindow,
		fsw:      fsw,
		lastSeen: make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds specsDir (and every existing subdirectory) to the fsnotify
// watch set and begins processing events in a background goroutine.
func (w *Watcher) Start() error {
	if err := addRecursive(w.fsw, w.specsDir); err != nil {
		return fmt.Errorf("watcher: start: %w", err)
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// A failed fsnotify read is transient; keep the loop alive.
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	// A newly created directory might itself need watching (recursive
	// coverage for specs created after Start).
	if ev.Has(fsnotify.Create) {
		if isDir(ev.Name) {
			_ = w.fsw.Add(ev.Name)
			return
		}
	}

	if filepath.Base(ev.Name) != PlanFile {
		return
	}

	specDir := filepath.Dir(ev.Name)
	specID := filepath.Base(specDir)

	if w.shouldDrop(specID) {
		return
	}

	w.onEvent(Event{SpecID: specID, SpecDir: specDir})
}

// shouldDrop applies the per-spec debounce window and prunes the debounce
// map once it grows past debounceMapLimit, removing entries older than
// debounceEntryMaxAge (§4.2).
func (w *Watcher) shouldDrop(specID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if last, ok := w.lastSeen[specID]; ok && now.Sub(last) < w.window {
		return true
	}
	w.lastSeen[specID] = now

	if len(w.lastSeen) > debounceMapLimit {
		for id, seen := range w.lastSeen {
			if now.Sub(seen) > debounceEntryMaxAge {
				delete(w.lastSeen, id)
			}
		}
	}
	return false
}

// Stop idempotently tears down the watcher; concurrent calls never join
// twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		_ = w.fsw.Close()
		<-w.done
	})
}
