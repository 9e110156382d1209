// Package grader scores student answers to choice questions against an
// exam's answer key. Grading is a pure function of its inputs.
package grader

import (
	"errors"
	"fmt"
	"math"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

var (
	// ErrEmptyRequest is returned when a request has no answers.
	ErrEmptyRequest = fmt.Errorf("grade: %w", model.ErrEmptyAnswerSet)
	// ErrUnknownQuestion matches every *UnknownQuestionError.
	ErrUnknownQuestion = errors.New("question not found in exam")
)

// UnknownQuestionError names the answer that referenced a missing question.
type UnknownQuestionError struct {
	ExamID     string
	QuestionID string
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("question ID %q not found in exam %q", e.QuestionID, e.ExamID)
}

func (e *UnknownQuestionError) Is(target error) bool {
	return target == ErrUnknownQuestion
}

// Grade scores every answer in req against exam. Answers to open-ended
// questions are skipped. Either every answer is graded or an error is
// returned and no response is produced.
func Grade(exam model.Exam, req model.GradeRequest, partialCredit bool) (*model.GradeResponse, error) {
	if len(req.Answers) == 0 {
		return nil, ErrEmptyRequest
	}

	questions := exam.QuestionIndex()
	for _, a := range req.Answers {
		if _, ok := questions[a.QuestionID]; !ok {
			return nil, &UnknownQuestionError{ExamID: exam.ExamID, QuestionID: a.QuestionID}
		}
	}

	results := make([]model.QuestionResult, 0, len(req.Answers))
	var totalCredit float64
	correct := 0
	for _, a := range req.Answers {
		q := questions[a.QuestionID]
		if !q.Type.IsChoice() {
			continue
		}
		r := gradeQuestion(q, a.Choice, partialCredit)
		results = append(results, r)
		totalCredit += r.PartialCredit
		if r.IsCorrect {
			correct++
		}
	}

	summary := model.GradeSummary{Total: len(results), Correct: correct}
	if len(results) > 0 {
		summary.ScorePercent = round(totalCredit/float64(len(results))*100, 2)
	}

	return &model.GradeResponse{
		ExamID:      req.ExamID,
		Summary:     summary,
		PerQuestion: results,
	}, nil
}

func gradeQuestion(q model.Question, given []int, partialCredit bool) model.QuestionResult {
	var isCorrect bool
	var credit float64

	switch q.Type {
	case model.SingleChoice:
		isCorrect = SingleChoiceCorrect(q.Correct, given)
		if isCorrect {
			credit = 1
		}
	case model.MultipleChoice:
		isCorrect = SameSet(q.Correct, given)
		switch {
		case isCorrect:
			credit = 1
		case partialCredit:
			credit = PartialCredit(q.Correct, given)
		}
	case model.OpenEnded:
		// Scored by the evaluator through a provider, never here.
	}

	return model.QuestionResult{
		QuestionID:    q.ID,
		IsCorrect:     isCorrect,
		Expected:      append([]int{}, q.Correct...),
		Given:         append([]int{}, given...),
		PartialCredit: round(credit, 4),
	}
}

// SingleChoiceCorrect reports whether given selects exactly the one
// expected index. An expected list that is not a singleton never matches.
func SingleChoiceCorrect(expected, given []int) bool {
	if len(expected) != 1 || len(given) != 1 {
		return false
	}
	return expected[0] == given[0]
}

// SameSet reports whether a and b contain the same indices, ignoring order
// and repetition.
func SameSet(a, b []int) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if !bs[k] {
			return false
		}
	}
	return true
}

// PartialCredit rewards correct selections and penalizes extraneous ones:
// (|E∩G| - |G\E|) / |E|, clamped to [0, 1]. An empty expected set scores 0.
func PartialCredit(expected, given []int) float64 {
	es, gs := toSet(expected), toSet(given)
	if len(es) == 0 {
		return 0
	}

	var hit, miss int
	for k := range gs {
		if es[k] {
			hit++
		} else {
			miss++
		}
	}

	credit := float64(hit-miss) / float64(len(es))
	return math.Max(0, math.Min(1, credit))
}

func toSet(xs []int) map[int]bool {
	s := make(map[int]bool, len(xs))
	for _, x := range xs {
		s[x] = true
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
