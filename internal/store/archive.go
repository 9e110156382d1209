package store

import (
	"context"
	"log/slog"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

// Archive saves documents to Results and indexes them in Store. It is the
// evaluator's result sink. A nil Store only writes files.
type Archive struct {
	results *Results
	index   *Store
	logger  *slog.Logger
}

func NewArchive(results *Results, index *Store, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{results: results, index: index, logger: logger}
}

// SaveResult writes the result file, then indexes it. An index failure is
// returned with the path of the file that was written.
func (a *Archive) SaveResult(ctx context.Context, r *model.ModelTestResult) (string, error) {
	path, err := a.results.SaveResult(r)
	if err != nil {
		return "", err
	}
	if a.index != nil {
		if err := a.index.RecordRun(ctx, r, path); err != nil {
			return path, err
		}
	}
	a.logger.Debug("result archived", "run_id", r.Metadata.RunID, "path", path)
	return path, nil
}

// SaveComparison writes the report file, then indexes it.
func (a *Archive) SaveComparison(ctx context.Context, r *model.ComparisonReport) (string, error) {
	path, err := a.results.SaveComparison(r)
	if err != nil {
		return "", err
	}
	if a.index != nil {
		if _, err := a.index.RecordComparison(ctx, r, path); err != nil {
			return path, err
		}
	}
	a.logger.Debug("comparison archived", "exam_id", r.ExamID, "path", path)
	return path, nil
}
