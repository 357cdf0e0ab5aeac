// Package state implements the daemon's durable State Store (C1): the
// completion set, recovery/error bookkeeping, and parent->child hierarchy
// backing invariants I2, I5, and I9.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/akfldk1028/taskdaemon/internal/filelock"
	"github.com/akfldk1028/taskdaemon/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is the thread-safe State Store described in §4.1. All mutations
// immediately persist to disk under an exclusive file lock.
type Store struct {
	mu   sync.RWMutex
	path string
	data *models.DaemonState
	lock *filelock.FileLock
}

// Open loads the state file at path, creating a fresh state if it doesn't
// exist yet. The returned Store owns an exclusive lock file alongside path.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		lock: filelock.NewFileLock(path + ".lock"),
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("state: acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	data, err := loadLocked(path)
	if err != nil {
		return nil, err
	}
	s.data = data
	return s, nil
}

func loadLocked(path string) (*models.DaemonState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return models.NewDaemonState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NewDaemonState(), nil
	}

	var data models.DaemonState
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("state: parse %s: %w", path, err)
	}
	data.RebuildIndex()
	return &data, nil
}

// persistLocked writes the in-memory state to disk atomically. Caller must
// hold s.mu for writing and s.lock acquired.
func (s *Store) persistLocked() error {
	s.data.LastUpdated = nowUTC()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("state: mkdir: %w", err)
	}
	return atomicWriteWithPIDSuffix(s.path, raw)
}

// mutate runs fn under the daemon-lock (both the in-process mutex and the
// cross-process file lock) and persists afterward.
func (s *Store) mutate(fn func(*models.DaemonState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("state: acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	fn(s.data)
	return s.persistLocked()
}

// MarkCompleted records id as completed (invariant I2: idempotent).
func (s *Store) MarkCompleted(id string) error {
	return s.mutate(func(d *models.DaemonState) {
		d.MarkCompleted(id)
	})
}

// IsCompleted is an O(1) membership check; no lock file round-trip needed
// since it only reads the in-memory mirror.
func (s *Store) IsCompleted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.IsCompleted(id)
}

// AreDependenciesMet applies the §4.1 ordered matcher to every dep and
// reports whether all of them resolve against the completion set.
func (s *Store) AreDependenciesMet(deps []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dep := range deps {
		if !s.matchLocked(dep) {
			return false
		}
	}
	return true
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// matchLocked implements the ordered dependency-met matcher from §4.1.
// Caller must hold s.mu for reading.
func (s *Store) matchLocked(dep string) bool {
	if s.data.IsCompleted(dep) {
		return true
	}

	if digits := leadingDigits.FindString(dep); digits != "" {
		n, err := strconv.Atoi(digits)
		if err == nil {
			padded := fmt.Sprintf("%03d", n)
			if strconv.Itoa(n) == dep {
				// bare number: match any completed ID starting with "N-"
				for _, id := range s.data.CompletedTasks {
					if strings.HasPrefix(id, padded+"-") {
						return true
					}
				}
			} else {
				// padded-prefix + full dep string (case-insensitive)
				lowerDep := strings.ToLower(dep)
				for _, id := range s.data.CompletedTasks {
					if strings.HasPrefix(id, padded+"-") && strings.HasPrefix(strings.ToLower(id), lowerDep) {
						return true
					}
				}
			}
		}
	}

	if len(dep) >= 3 {
		lowerDep := strings.ToLower(dep)
		for _, id := range s.data.CompletedTasks {
			if strings.HasPrefix(strings.ToLower(id), lowerDep) {
				return true
			}
		}
	}
	return false
}

// GetRecoveryCount returns the current recovery count for id (0 if never
// recovered).
func (s *Store) GetRecoveryCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.RecoveryCounts[id]
}

// IncrementRecoveryCount bumps id's recovery count and returns the new
// value (invariant I5: monotonically increasing).
func (s *Store) IncrementRecoveryCount(id string) (int, error) {
	var n int
	err := s.mutate(func(d *models.DaemonState) {
		d.RecoveryCounts[id]++
		n = d.RecoveryCounts[id]
	})
	return n, err
}

// ResetRecoveryCount clears id's recovery count, used after a successful
// dispatch following prior recoveries.
func (s *Store) ResetRecoveryCount(id string) error {
	return s.mutate(func(d *models.DaemonState) {
		delete(d.RecoveryCounts, id)
	})
}

// RecordError stores text as id's error history entry and bumps its error
// count.
func (s *Store) RecordError(id, text string) error {
	return s.mutate(func(d *models.DaemonState) {
		d.ErrorCounts[id]++
		d.LastErrors[id] = text
	})
}

// LastError returns the most recently recorded error text for id, if any.
func (s *Store) LastError(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.data.LastErrors[id]
	return text, ok
}

// AddChild records a parent->child hierarchy edge.
func (s *Store) AddChild(parent, child string) error {
	return s.mutate(func(d *models.DaemonState) {
		d.AddChild(parent, child)
	})
}

// Children returns the recorded children of parent.
func (s *Store) Children(parent string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	children := s.data.TaskHierarchy[parent]
	out := make([]string, len(children))
	copy(out, children)
	return out
}

// Snapshot returns a deep-enough copy of the current state for callers
// (e.g. the status publisher) that need a point-in-time read without
// holding the store's lock.
func (s *Store) Snapshot() models.DaemonState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.data
	cp.CompletedTasks = append([]string(nil), s.data.CompletedTasks...)
	return cp
}
