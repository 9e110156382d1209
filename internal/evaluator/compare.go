package evaluator

import (
	"time"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

// CompareModels aggregates results of the same exam. The best model is the
// one with the strictly highest accuracy; ties go to the earliest result.
// Exam id and question count are taken from the first result.
func CompareModels(results []*model.ModelTestResult) (*model.ComparisonReport, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	first := results[0]
	report := &model.ComparisonReport{
		ExamID:               first.ExamID,
		TotalQuestions:       first.TotalQuestions,
		Models:               make([]model.ModelSummary, 0, len(results)),
		BestModel:            first.ModelName,
		BestAccuracy:         first.Accuracy,
		PerQuestionBreakdown: make(map[string]model.QuestionBreakdown),
		Timestamp:            time.Now(),
	}

	for _, r := range results {
		report.Models = append(report.Models, model.ModelSummary{
			ModelName:    r.ModelName,
			Provider:     r.Provider,
			Accuracy:     r.Accuracy,
			CorrectCount: r.CorrectCount,
			AIPassRate:   r.Accuracy,
		})
		if r.Accuracy > report.BestAccuracy {
			report.BestModel = r.ModelName
			report.BestAccuracy = r.Accuracy
		}

		for _, rec := range r.PerQuestionResults {
			b, ok := report.PerQuestionBreakdown[rec.QuestionID]
			if !ok {
				b = model.QuestionBreakdown{
					QuestionType:    rec.QuestionType,
					ModelsCorrect:   []string{},
					ModelsIncorrect: []string{},
				}
			}
			if rec.Correct {
				b.ModelsCorrect = append(b.ModelsCorrect, r.ModelName)
			} else {
				b.ModelsIncorrect = append(b.ModelsIncorrect, r.ModelName)
			}
			report.PerQuestionBreakdown[rec.QuestionID] = b
		}
	}
	return report, nil
}
