package model

import "fmt"

// StudentAnswer is the set of option indices chosen for one question.
type StudentAnswer struct {
	QuestionID string `json:"question_id"`
	Choice     []int  `json:"choice"`
}

// GradeRequest carries the answers to grade for one exam.
type GradeRequest struct {
	ExamID  string          `json:"exam_id"`
	Answers []StudentAnswer `json:"answers"`
}

// Validate rejects requests with no answers.
func (r GradeRequest) Validate() error {
	if len(r.Answers) == 0 {
		return ErrEmptyAnswerSet
	}
	return nil
}

// QuestionResult is the grading outcome for a single answer.
type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	Expected      []int   `json:"expected"`
	Given         []int   `json:"given"`
	PartialCredit float64 `json:"partial_credit"`
}

// GradeSummary aggregates the per-question results.
type GradeSummary struct {
	Total        int     `json:"total"`
	Correct      int     `json:"correct"`
	ScorePercent float64 `json:"score_percent"`
}

// Validate checks that correct never exceeds total.
func (s GradeSummary) Validate() error {
	if s.Correct > s.Total {
		return &ValidationError{Kind: KindSummaryOverflow, Field: "correct",
			Message: fmt.Sprintf("correct (%d) cannot exceed total (%d)", s.Correct, s.Total)}
	}
	return nil
}

// GradeResponse is the output of grading one request.
type GradeResponse struct {
	ExamID      string           `json:"exam_id"`
	Summary     GradeSummary     `json:"summary"`
	PerQuestion []QuestionResult `json:"per_question"`
}
