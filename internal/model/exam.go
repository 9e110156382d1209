package model

import (
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/text/language"
)

// ratioTolerance bounds how far the three type ratios may drift from 1.0.
const ratioTolerance = 1e-6

// Difficulty is the requested difficulty of a generated exam.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

var supportedLanguages = map[string]bool{"en": true, "ru": true}

// ExamConfig records the parameters an exam was generated with.
type ExamConfig struct {
	TotalQuestions      int        `json:"total_questions"`
	SingleChoiceRatio   float64    `json:"single_choice_ratio"`
	MultipleChoiceRatio float64    `json:"multiple_choice_ratio"`
	OpenEndedRatio      float64    `json:"open_ended_ratio"`
	Language            string     `json:"language"`
	Difficulty          Difficulty `json:"difficulty"`
}

// DefaultExamConfig mirrors the generator defaults.
func DefaultExamConfig() ExamConfig {
	return ExamConfig{
		TotalQuestions:      20,
		SingleChoiceRatio:   0.7,
		MultipleChoiceRatio: 0.3,
		OpenEndedRatio:      0,
		Language:            "en",
		Difficulty:          DifficultyMedium,
	}
}

// NewExamConfig validates c and returns it.
func NewExamConfig(c ExamConfig) (ExamConfig, error) {
	if err := c.Validate(); err != nil {
		return ExamConfig{}, err
	}
	return c, nil
}

// Validate checks the config invariants.
func (c ExamConfig) Validate() error {
	if c.TotalQuestions < 1 {
		return &ValidationError{Kind: KindInvalidTotal, Field: "total_questions",
			Message: fmt.Sprintf("total_questions must be >= 1, got %d", c.TotalQuestions)}
	}
	ratios := []struct {
		name string
		v    float64
	}{
		{"single_choice_ratio", c.SingleChoiceRatio},
		{"multiple_choice_ratio", c.MultipleChoiceRatio},
		{"open_ended_ratio", c.OpenEndedRatio},
	}
	var sum float64
	for _, r := range ratios {
		if r.v < 0 || r.v > 1 || math.IsNaN(r.v) {
			return &ValidationError{Kind: KindRatioOutOfRange, Field: r.name,
				Message: fmt.Sprintf("%s must be within [0, 1], got %v", r.name, r.v)}
		}
		sum += r.v
	}
	if math.Abs(sum-1.0) > ratioTolerance {
		return &ValidationError{Kind: KindRatioMismatch, Field: "ratios",
			Message: fmt.Sprintf("ratios must sum to 1.0, got %.4f", sum)}
	}
	if !IsSupportedLanguage(c.Language) {
		return &ValidationError{Kind: KindUnsupportedLanguage, Field: "language",
			Message: fmt.Sprintf("unsupported language %q", c.Language)}
	}
	switch c.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
	default:
		return &ValidationError{Kind: KindInvalidDifficulty, Field: "difficulty",
			Message: fmt.Sprintf("unknown difficulty %q", c.Difficulty)}
	}
	return nil
}

// IsSupportedLanguage reports whether lang is a BCP 47 tag whose base
// language has prompts available.
func IsSupportedLanguage(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return supportedLanguages[base.String()]
}

func (c *ExamConfig) UnmarshalJSON(data []byte) error {
	type plain ExamConfig
	p := plain(DefaultExamConfig())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := ExamConfig(p).Validate(); err != nil {
		return err
	}
	*c = ExamConfig(p)
	return nil
}

// Exam is an ordered set of questions with unique ids.
type Exam struct {
	ExamID     string     `json:"exam_id"`
	Questions  []Question `json:"questions"`
	ConfigUsed ExamConfig `json:"config_used"`
}

// NewExam validates the exam and every question in it.
func NewExam(examID string, questions []Question, cfg ExamConfig) (Exam, error) {
	e := Exam{ExamID: examID, Questions: questions, ConfigUsed: cfg}
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	return e, nil
}

// MustExam is like NewExam but panics on invalid input.
func MustExam(examID string, questions []Question, cfg ExamConfig) Exam {
	e, err := NewExam(examID, questions, cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate checks exam-level invariants, including each question.
func (e Exam) Validate() error {
	if e.ExamID == "" {
		return &ValidationError{Kind: KindEmptyExamID, Field: "exam_id", Message: "exam_id is required"}
	}
	if err := e.ConfigUsed.Validate(); err != nil {
		return fmt.Errorf("exam %s: config_used: %w", e.ExamID, err)
	}
	seen := make(map[string]bool, len(e.Questions))
	for i, q := range e.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("exam %s: questions[%d]: %w", e.ExamID, i, err)
		}
		if seen[q.ID] {
			return &ValidationError{Kind: KindDuplicateQuestionID, Field: "questions",
				Message: fmt.Sprintf("exam %s: question ids must be unique, %q repeats", e.ExamID, q.ID)}
		}
		seen[q.ID] = true
	}
	return nil
}

// QuestionIndex maps question ids to questions.
func (e Exam) QuestionIndex() map[string]Question {
	idx := make(map[string]Question, len(e.Questions))
	for _, q := range e.Questions {
		idx[q.ID] = q
	}
	return idx
}

func (e *Exam) UnmarshalJSON(data []byte) error {
	type plain Exam
	p := plain{ConfigUsed: DefaultExamConfig()}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := Exam(p).Validate(); err != nil {
		return err
	}
	*e = Exam(p)
	return nil
}
