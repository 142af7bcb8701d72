// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local SQLite log of the evaluations this client
// has performed. It serves as an offline source for the objective list and
// can be exported to YAML or JSON.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

const dbFile = "history.db"

// Store manages the history SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewStore opens or creates dir/history.db and its schema.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:      db,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS objectives (
			id TEXT PRIMARY KEY,
			objective TEXT NOT NULL,
			status TEXT,
			score REAL,
			clarity REAL,
			focus REAL,
			writing REAL,
			feedback TEXT,
			suggestions TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS key_results (
			id TEXT PRIMARY KEY,
			okr_id TEXT NOT NULL REFERENCES objectives(id),
			definition TEXT NOT NULL,
			target_value TEXT NOT NULL,
			target_date TEXT NOT NULL,
			score REAL,
			feedback TEXT,
			breakdown TEXT,
			evaluated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_objectives_created_at ON objectives(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_key_results_okr_id ON key_results(okr_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// RecordObjective stores an evaluated objective and returns its ID. The
// service's ID is used when present; otherwise a ULID is assigned.
// Re-evaluating the same ID replaces the stored row.
func (s *Store) RecordObjective(ctx context.Context, text string, result types.EvaluationResult) (string, error) {
	id := result.ID
	if id == "" {
		id = s.newID()
	}
	suggestions, err := json.Marshal(result.Suggestions)
	if err != nil {
		return "", fmt.Errorf("encoding suggestions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO objectives
			(id, objective, score, clarity, focus, writing, feedback, suggestions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			objective = excluded.objective,
			score = excluded.score,
			clarity = excluded.clarity,
			focus = excluded.focus,
			writing = excluded.writing,
			feedback = excluded.feedback,
			suggestions = excluded.suggestions`,
		id, text, result.Score,
		breakdownValue(result.Breakdown, "clarity"),
		breakdownValue(result.Breakdown, "focus"),
		breakdownValue(result.Breakdown, "writing"),
		result.Feedback, string(suggestions),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("recording objective %s: %w", id, err)
	}
	return id, nil
}

// RememberObjective stores an objective fetched from the service unless a
// row with its ID already exists, so key results evaluated against it have
// a parent.
func (s *Store) RememberObjective(ctx context.Context, o types.Objective) error {
	if o.ID == "" {
		return fmt.Errorf("objective has no id")
	}
	createdAt := o.CreatedAt
	if createdAt == "" {
		createdAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO objectives
			(id, objective, status, score, clarity, focus, writing, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Objective, nullString(string(o.Status)), nullFloat(o.Score),
		nullFloat(o.Clarity), nullFloat(o.Focus), nullFloat(o.Writing),
		o.Feedback, createdAt,
	)
	if err != nil {
		return fmt.Errorf("remembering objective %s: %w", o.ID, err)
	}
	return nil
}

// RecordKeyResult stores an evaluated key result. Its parent objective must
// already be recorded.
func (s *Store) RecordKeyResult(ctx context.Context, kr types.KeyResult) (string, error) {
	id := kr.ID
	if id == "" {
		id = s.newID()
	}
	breakdown, err := json.Marshal(kr.Breakdown)
	if err != nil {
		return "", fmt.Errorf("encoding breakdown: %w", err)
	}
	evaluatedAt := kr.EvaluatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO key_results
			(id, okr_id, definition, target_value, target_date, score, feedback, breakdown, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kr.ObjectiveID, kr.Definition, kr.TargetValue, kr.TargetDate,
		nullFloat(kr.Score), kr.Feedback, string(breakdown),
		evaluatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("recording key result for %s: %w", kr.ObjectiveID, err)
	}
	return id, nil
}

// ListObjectives returns every recorded objective, newest first. The filter
// is not applied here; callers filter with internal/filter.
func (s *Store) ListObjectives(ctx context.Context, _ types.FilterSpec) ([]types.Objective, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, objective, status, score, clarity, focus, writing, feedback, created_at
		FROM objectives ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying objectives: %w", err)
	}
	defer rows.Close()

	objectives := []types.Objective{}
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

// Objective returns one recorded objective.
func (s *Store) Objective(ctx context.Context, id string) (types.Objective, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, objective, status, score, clarity, focus, writing, feedback, created_at
		FROM objectives WHERE id = ?`, id)
	o, err := scanObjective(row)
	if err == sql.ErrNoRows {
		return types.Objective{}, fmt.Errorf("objective %s not found in history", id)
	}
	return o, err
}

// KeyResults returns the key results recorded for an objective in
// evaluation order.
func (s *Store) KeyResults(ctx context.Context, objectiveID string) ([]types.KeyResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, okr_id, definition, target_value, target_date, score, feedback, breakdown, evaluated_at
		FROM key_results WHERE okr_id = ? ORDER BY evaluated_at, id`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("querying key results: %w", err)
	}
	defer rows.Close()

	krs := []types.KeyResult{}
	for rows.Next() {
		var (
			kr          types.KeyResult
			score       sql.NullFloat64
			feedback    sql.NullString
			breakdown   sql.NullString
			evaluatedAt string
		)
		if err := rows.Scan(&kr.ID, &kr.ObjectiveID, &kr.Definition, &kr.TargetValue, &kr.TargetDate,
			&score, &feedback, &breakdown, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scanning key result: %w", err)
		}
		kr.Score = floatPtr(score)
		kr.Feedback = feedback.String
		if breakdown.Valid && breakdown.String != "" && breakdown.String != "null" {
			if err := json.Unmarshal([]byte(breakdown.String), &kr.Breakdown); err != nil {
				return nil, fmt.Errorf("decoding breakdown of %s: %w", kr.ID, err)
			}
		}
		kr.EvaluatedAt, _ = time.Parse(time.RFC3339Nano, evaluatedAt)
		krs = append(krs, kr)
	}
	return krs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObjective(sc scanner) (types.Objective, error) {
	var (
		o                types.Objective
		status, feedback sql.NullString
		score, clarity   sql.NullFloat64
		focus, writing   sql.NullFloat64
	)
	if err := sc.Scan(&o.ID, &o.Objective, &status, &score, &clarity, &focus, &writing, &feedback, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Objective{}, err
		}
		return types.Objective{}, fmt.Errorf("scanning objective: %w", err)
	}
	o.Status = types.Status(status.String)
	o.Score = floatPtr(score)
	o.Clarity = floatPtr(clarity)
	o.Focus = floatPtr(focus)
	o.Writing = floatPtr(writing)
	o.Feedback = feedback.String
	return o, nil
}

func breakdownValue(b map[string]float64, key string) any {
	if v, ok := b[key]; ok {
		return v
	}
	return nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
