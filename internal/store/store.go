package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is not in the index.
var ErrNotFound = errors.New("not found")

// Store is the SQLite index of evaluation runs and comparison reports. The
// full documents live in Results; the index keeps what listing needs.
type Store struct {
	db *sql.DB
}

// RunRecord is one row of the runs index.
type RunRecord struct {
	ID             string    `json:"run_id"`
	ExamID         string    `json:"exam_id"`
	ModelName      string    `json:"model_name"`
	Provider       string    `json:"provider"`
	Language       string    `json:"language"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	FailedCount    int       `json:"failed_questions"`
	Accuracy       float64   `json:"accuracy"`
	Cancelled      bool      `json:"cancelled"`
	ResultFile     string    `json:"result_file"`
	CreatedAt      time.Time `json:"created_at"`
}

// ComparisonRecord is one row of the comparisons index.
type ComparisonRecord struct {
	ID           int64     `json:"id"`
	ExamID       string    `json:"exam_id"`
	BestModel    string    `json:"best_model"`
	BestAccuracy float64   `json:"best_accuracy"`
	ModelCount   int       `json:"model_count"`
	ReportFile   string    `json:"report_file"`
	CreatedAt    time.Time `json:"created_at"`
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		provider TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		total_questions INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		result_file TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_exam ON runs(exam_id, created_at);

	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id TEXT NOT NULL,
		best_model TEXT NOT NULL,
		best_accuracy REAL NOT NULL DEFAULT 0,
		model_count INTEGER NOT NULL DEFAULT 0,
		report_file TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun indexes a model result saved at path. Recording the same run
// again replaces the row.
func (s *Store) RecordRun(ctx context.Context, r *model.ModelTestResult, path string) error {
	if r.Metadata.RunID == "" {
		return fmt.Errorf("record run: result has no run id")
	}
	createdAt := r.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (id, exam_id, model_name, provider, language, total_questions, correct_count, failed_count, accuracy, cancelled, result_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Metadata.RunID, r.ExamID, r.ModelName, r.Provider, r.Metadata.Language,
		r.TotalQuestions, r.CorrectCount, r.Metadata.Failed, r.Accuracy, r.Metadata.Cancelled,
		path, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.Metadata.RunID, err)
	}
	return nil
}

// RecordComparison indexes a comparison report saved at path.
func (s *Store) RecordComparison(ctx context.Context, r *model.ComparisonReport, path string) (int64, error) {
	createdAt := r.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comparisons (exam_id, best_model, best_accuracy, model_count, report_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ExamID, r.BestModel, r.BestAccuracy, len(r.Models), path, createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record comparison for %s: %w", r.ExamID, err)
	}
	return res.LastInsertId()
}

const runColumns = `id, exam_id, model_name, provider, language, total_questions, correct_count, failed_count, accuracy, cancelled, result_file, created_at`

// ListRuns returns indexed runs, newest first. An empty examID lists all.
func (s *Store) ListRuns(ctx context.Context, examID string) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if examID != "" {
		query += ` AND exam_id = ?`
		args = append(args, examID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one indexed run or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// RunCount returns the number of indexed runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// ListComparisons returns indexed comparison reports for an exam, newest
// first. An empty examID lists all.
func (s *Store) ListComparisons(ctx context.Context, examID string) ([]ComparisonRecord, error) {
	query := `SELECT id, exam_id, best_model, best_accuracy, model_count, report_file, created_at FROM comparisons WHERE 1=1`
	var args []any
	if examID != "" {
		query += ` AND exam_id = ?`
		args = append(args, examID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ComparisonRecord
	for rows.Next() {
		var c ComparisonRecord
		if err := rows.Scan(&c.ID, &c.ExamID, &c.BestModel, &c.BestAccuracy, &c.ModelCount, &c.ReportFile, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var r RunRecord
	err := sc.Scan(&r.ID, &r.ExamID, &r.ModelName, &r.Provider, &r.Language,
		&r.TotalQuestions, &r.CorrectCount, &r.FailedCount, &r.Accuracy, &r.Cancelled,
		&r.ResultFile, &r.CreatedAt)
	return r, err
}
