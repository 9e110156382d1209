package model

import (
	"encoding/json"
	"fmt"
)

// QuestionType is the closed set of question kinds. The zero value is invalid.
type QuestionType int

const (
	// SingleChoice has exactly one correct option.
	SingleChoice QuestionType = iota + 1
	// MultipleChoice has one or more correct options.
	MultipleChoice
	// OpenEnded is answered in free text and graded against a rubric.
	OpenEnded
)

var questionTypeNames = map[QuestionType]string{
	SingleChoice:   "single_choice",
	MultipleChoice: "multiple_choice",
	OpenEnded:      "open_ended",
}

// ParseQuestionType maps the wire name of a question type to its value.
func ParseQuestionType(s string) (QuestionType, error) {
	for t, name := range questionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, &ValidationError{Kind: KindUnknownType, Field: "type", Message: fmt.Sprintf("unknown question type %q", s)}
}

func (t QuestionType) String() string {
	if name, ok := questionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("QuestionType(%d)", int(t))
}

// IsChoice reports whether answers to this type are option indices.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

func (t QuestionType) MarshalText() ([]byte, error) {
	name, ok := questionTypeNames[t]
	if !ok {
		return nil, &ValidationError{Kind: KindUnknownType, Field: "type", Message: t.String()}
	}
	return []byte(name), nil
}

func (t *QuestionType) UnmarshalText(b []byte) error {
	v, err := ParseQuestionType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// SourceReference points at the span of source material a question was built from.
type SourceReference struct {
	File    string `json:"file"`
	Heading string `json:"heading,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// NewSourceReference builds a validated SourceReference.
func NewSourceReference(file, heading string, start, end int) (SourceReference, error) {
	ref := SourceReference{File: file, Heading: heading, Start: start, End: end}
	return ref, ref.Validate()
}

// Validate checks that the span is well formed.
func (r SourceReference) Validate() error {
	if r.Start < 0 {
		return &ValidationError{Kind: KindInvalidSourceRange, Field: "start", Message: "start must be >= 0"}
	}
	if r.End < r.Start {
		return &ValidationError{Kind: KindInvalidSourceRange, Field: "end", Message: "end must be >= start"}
	}
	return nil
}

func (r *SourceReference) UnmarshalJSON(data []byte) error {
	type plain SourceReference
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := SourceReference(p).Validate(); err != nil {
		return err
	}
	*r = SourceReference(p)
	return nil
}

// Question is a single exam item. Values obtained through NewQuestion or JSON
// decoding are always valid.
type Question struct {
	ID              string            `json:"id"`
	Type            QuestionType      `json:"type"`
	Stem            string            `json:"stem"`
	Options         []string          `json:"options,omitempty"`
	Correct         []int             `json:"correct,omitempty"`
	ReferenceAnswer string            `json:"reference_answer,omitempty"`
	Rubric          []string          `json:"rubric,omitempty"`
	SourceRefs      []SourceReference `json:"source_refs,omitempty"`
}

// NewQuestion validates q and returns it.
func NewQuestion(q Question) (Question, error) {
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// MustQuestion is like NewQuestion but panics on invalid input.
func MustQuestion(q Question) Question {
	q, err := NewQuestion(q)
	if err != nil {
		panic(err)
	}
	return q
}

// Validate checks the construction invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return &ValidationError{Kind: KindEmptyID, Field: "id", Message: "question id is required"}
	}
	if q.Stem == "" {
		return &ValidationError{Kind: KindEmptyStem, Field: "stem", Message: fmt.Sprintf("question %s: stem is required", q.ID)}
	}
	for i, ref := range q.SourceRefs {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("question %s: source_refs[%d]: %w", q.ID, i, err)
		}
	}

	switch q.Type {
	case SingleChoice, MultipleChoice:
		return q.validateChoice()
	case OpenEnded:
		if q.ReferenceAnswer == "" {
			return &ValidationError{Kind: KindMissingReferenceAnswer, Field: "reference_answer",
				Message: fmt.Sprintf("question %s: open-ended questions need a reference answer", q.ID)}
		}
		if len(q.Options) > 0 || len(q.Correct) > 0 {
			return &ValidationError{Kind: KindUnexpectedOptions, Field: "options",
				Message: fmt.Sprintf("question %s: open-ended questions take no options", q.ID)}
		}
		return nil
	default:
		return &ValidationError{Kind: KindUnknownType, Field: "type", Message: fmt.Sprintf("question %s: %s", q.ID, q.Type)}
	}
}

func (q Question) validateChoice() error {
	if len(q.Options) < 2 {
		return &ValidationError{Kind: KindTooFewOptions, Field: "options",
			Message: fmt.Sprintf("question %s: need at least 2 options, got %d", q.ID, len(q.Options))}
	}
	for i, opt := range q.Options {
		if opt == "" {
			return &ValidationError{Kind: KindEmptyOption, Field: fmt.Sprintf("options[%d]", i),
				Message: fmt.Sprintf("question %s: option %d is empty", q.ID, i)}
		}
	}
	if len(q.Correct) == 0 {
		return &ValidationError{Kind: KindNoCorrectAnswer, Field: "correct",
			Message: fmt.Sprintf("question %s: at least one correct index is required", q.ID)}
	}
	seen := make(map[int]bool, len(q.Correct))
	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Options) {
			return &ValidationError{Kind: KindIndexOutOfRange, Field: "correct",
				Message: fmt.Sprintf("question %s: correct index %d out of range [0, %d)", q.ID, idx, len(q.Options))}
		}
		if seen[idx] {
			return &ValidationError{Kind: KindDuplicateIndex, Field: "correct",
				Message: fmt.Sprintf("question %s: correct index %d listed twice", q.ID, idx)}
		}
		seen[idx] = true
	}
	if q.Type == SingleChoice && len(q.Correct) != 1 {
		return &ValidationError{Kind: KindSingleChoiceArity, Field: "correct",
			Message: fmt.Sprintf("question %s: single_choice must have exactly one correct index, got %d", q.ID, len(q.Correct))}
	}
	return nil
}

func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := Question(p).Validate(); err != nil {
		return err
	}
	*q = Question(p)
	return nil
}
