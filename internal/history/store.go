// Package history implements the SQLite secondary index half of the Scorer &
// Lesson Store (C10): it mirrors every written lesson and every scored run
// for query access. When the database file is corrupt, OpenOrRebuild
// recreates it and repopulates the lessons table from mcts_lessons.json; a
// missing database starts empty, and scored runs are not rebuilt. It is
// never authoritative over the JSON journal (§4.10 Lessons).
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT,
	key_takeaway TEXT,
	findings TEXT,
	detection_signals TEXT,
	recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_lessons_node ON lessons(node_id);

CREATE TABLE IF NOT EXISTS scored_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	root_spec_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	spec_id TEXT NOT NULL,
	build_passed BOOLEAN,
	test_pass_rate REAL,
	lint_clean BOOLEAN,
	qa_approved BOOLEAN,
	subtask_completion REAL,
	total REAL,
	scored_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scored_runs_root ON scored_runs(root_spec_id);
CREATE INDEX IF NOT EXISTS idx_scored_runs_node ON scored_runs(node_id);
CREATE INDEX IF NOT EXISTS idx_scored_runs_total ON scored_runs(total DESC);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// ScoredRun is a single node's scorer breakdown, mirrored for query access
// alongside the tree it was produced from.
type ScoredRun struct {
	ID                int64
	RootSpecID        string
	NodeID            string
	SpecID            string
	BuildPassed       bool
	TestPassRate      float64
	LintClean         bool
	QAApproved        bool
	SubtaskCompletion float64
	Total             float64
}

// Store is the SQLite-backed secondary index. It is always safe to discard
// and rebuild: RecordLesson/RecordScoredRun are idempotent mirrors of data
// that lives authoritatively in JSON on disk.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at dbPath and
// ensures its schema exists. Pass ":memory:" for a throwaway store in tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordLesson mirrors a single lesson, upserting by id.
func (s *Store) RecordLesson(l models.Lesson) error {
	findings, err := json.Marshal(l.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	signals, err := json.Marshal(l.DetectionSignals)
	if err != nil {
		return fmt.Errorf("marshal detection signals: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO lessons (id, node_id, title, summary, key_takeaway, findings, detection_signals)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			node_id=excluded.node_id, title=excluded.title, summary=excluded.summary,
			key_takeaway=excluded.key_takeaway, findings=excluded.findings,
			detection_signals=excluded.detection_signals`,
		l.ID, l.NodeID, l.Title, l.Summary, l.KeyTakeaway, string(findings), string(signals))
	if err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}
	return nil
}

// RecordLessons mirrors an entire lesson store, e.g. right after it is
// written to mcts_lessons.json.
func (s *Store) RecordLessons(store models.LessonStore) error {
	for _, l := range store.Lessons {
		if err := s.RecordLesson(l); err != nil {
			return err
		}
	}
	return nil
}

// RecordScoredRun appends one node's scorer breakdown.
func (s *Store) RecordScoredRun(r ScoredRun) error {
	_, err := s.db.Exec(`
		INSERT INTO scored_runs (root_spec_id, node_id, spec_id, build_passed, test_pass_rate, lint_clean, qa_approved, subtask_completion, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RootSpecID, r.NodeID, r.SpecID, r.BuildPassed, r.TestPassRate, r.LintClean, r.QAApproved, r.SubtaskCompletion, r.Total)
	if err != nil {
		return fmt.Errorf("insert scored run: %w", err)
	}
	return nil
}

// Lessons returns every mirrored lesson, most recently recorded first.
func (s *Store) Lessons() ([]models.Lesson, error) {
	rows, err := s.db.Query(`SELECT id, node_id, title, summary, key_takeaway, findings, detection_signals FROM lessons ORDER BY rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []models.Lesson
	for rows.Next() {
		var l models.Lesson
		var findings, signals string
		if err := rows.Scan(&l.ID, &l.NodeID, &l.Title, &l.Summary, &l.KeyTakeaway, &findings, &signals); err != nil {
			return nil, fmt.Errorf("scan lesson row: %w", err)
		}
		if findings != "" {
			_ = json.Unmarshal([]byte(findings), &l.Findings)
		}
		if signals != "" {
			_ = json.Unmarshal([]byte(signals), &l.DetectionSignals)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// BestRun returns the highest-scoring run recorded for rootSpecID, or ok=false
// if none exist.
func (s *Store) BestRun(rootSpecID string) (run ScoredRun, ok bool, err error) {
	row := s.db.QueryRow(`
		SELECT id, root_spec_id, node_id, spec_id, build_passed, test_pass_rate, lint_clean, qa_approved, subtask_completion, total
		FROM scored_runs WHERE root_spec_id = ? ORDER BY total DESC LIMIT 1`, rootSpecID)
	err = row.Scan(&run.ID, &run.RootSpecID, &run.NodeID, &run.SpecID, &run.BuildPassed, &run.TestPassRate, &run.LintClean, &run.QAApproved, &run.SubtaskCompletion, &run.Total)
	if err == sql.ErrNoRows {
		return ScoredRun{}, false, nil
	}
	if err != nil {
		return ScoredRun{}, false, fmt.Errorf("query best run: %w", err)
	}
	return run, true, nil
}

// Rebuild discards and repopulates the lessons table from an on-disk
// mcts_lessons.json journal. The JSON file is always the source of truth; the
// database is a disposable index (§4.10: "never authoritative over it").
func (s *Store) Rebuild(lessonsJSONPath string) error {
	data, err := os.ReadFile(lessonsJSONPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lesson journal: %w", err)
	}

	var store models.LessonStore
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("parse lesson journal: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM lessons`); err != nil {
		return fmt.Errorf("clear lessons table: %w", err)
	}
	return s.RecordLessons(store)
}

// isCorrupt reports whether err looks like sqlite telling us the database
// file itself is unusable, as opposed to an ordinary query error.
func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || strings.Contains(msg, "disk image is malformed")
}

// OpenOrRebuild opens dbPath, and if the file exists but is corrupt, deletes
// it, opens a fresh database, and rebuilds it from lessonsJSONPath.
func OpenOrRebuild(dbPath, lessonsJSONPath string) (*Store, error) {
	s, err := Open(dbPath)
	if err == nil {
		if _, pingErr := s.db.Exec(`SELECT 1 FROM schema_version LIMIT 1`); pingErr == nil {
			return s, nil
		} else if !isCorrupt(pingErr) {
			return s, nil
		}
		s.Close()
	} else if !isCorrupt(err) {
		return nil, err
	}

	if dbPath != ":memory:" {
		if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove corrupt history database: %w", rmErr)
		}
	}

	s, err = Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Rebuild(lessonsJSONPath); err != nil {
		s.Close()
		return nil, fmt.Errorf("rebuild history database: %w", err)
	}
	return s, nil
}
