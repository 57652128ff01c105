// Package sqlite stores analysis records in a SQLite database so results of
// several runs can be queried together.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hejijunhao/autotag/internal/output"
)

//go:embed schema.sql
var schemaSQL string

// Store is an output.Sink backed by SQLite.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates or connects to the results database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite output: create dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite output: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite output: apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Write inserts the record with its ranked labels and class means in a
// single transaction.
func (s *Store) Write(ctx context.Context, rec output.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite output: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	analyzedAt := rec.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}

	var threshold, minScore sql.NullFloat64
	var minFreq, maxLabels sql.NullInt64
	if p := rec.Params; p != nil {
		threshold = sql.NullFloat64{Float64: p.Threshold, Valid: true}
		minScore = sql.NullFloat64{Float64: p.MinScore, Valid: true}
		minFreq = sql.NullInt64{Int64: int64(p.MinFrequency), Valid: true}
		if p.MaxLabels != nil {
			maxLabels = sql.NullInt64{Int64: int64(*p.MaxLabels), Valid: true}
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (
            run_id, pipeline, file, path, final_labels, tag_value, regression,
            threshold, min_freq, min_score, max_labels, analyzed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Pipeline,
		rec.File,
		rec.Path,
		rec.FinalLabels,
		rec.TagValue,
		rec.Regression,
		threshold,
		minFreq,
		minScore,
		maxLabels,
		analyzedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite output: insert analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite output: last insert id: %w", err)
	}

	for rank, ls := range rec.Results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO labels (analysis_id, rank, label, count, frequency, mean_score)
             VALUES (?, ?, ?, ?, ?, ?)`,
			id, rank+1, ls.Label, ls.Count, ls.Frequency, ls.MeanScore,
		); err != nil {
			return fmt.Errorf("sqlite output: insert label %q: %w", ls.Label, err)
		}
	}
	for _, cs := range rec.AllScores {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO class_scores (analysis_id, label, score) VALUES (?, ?, ?)`,
			id, cs.Label, cs.Score,
		); err != nil {
			return fmt.Errorf("sqlite output: insert class score %q: %w", cs.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite output: commit: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
