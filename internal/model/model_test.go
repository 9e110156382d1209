package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func choiceQuestion(id string, typ QuestionType, options []string, correct []int) Question {
	return Question{ID: id, Type: typ, Stem: "Stem " + id, Options: options, Correct: correct}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name     string
		q        Question
		wantKind ValidationKind
	}{
		{"valid single", choiceQuestion("q1", SingleChoice, []string{"3", "4", "5"}, []int{1}), ""},
		{"valid multiple", choiceQuestion("q2", MultipleChoice, []string{"1", "2", "3", "4"}, []int{1, 3}), ""},
		{"valid open", Question{ID: "q3", Type: OpenEnded, Stem: "Explain", ReferenceAnswer: "Because", Rubric: []string{"a"}}, ""},
		{"single with two correct", choiceQuestion("q4", SingleChoice, []string{"A", "B", "C"}, []int{0, 1}), KindSingleChoiceArity},
		{"index out of range", choiceQuestion("q5", SingleChoice, []string{"A", "B"}, []int{5}), KindIndexOutOfRange},
		{"negative index", choiceQuestion("q5b", MultipleChoice, []string{"A", "B"}, []int{-1}), KindIndexOutOfRange},
		{"too few options", choiceQuestion("q6", SingleChoice, []string{"A"}, []int{0}), KindTooFewOptions},
		{"empty option", choiceQuestion("q7", MultipleChoice, []string{"A", ""}, []int{0}), KindEmptyOption},
		{"no correct", choiceQuestion("q8", MultipleChoice, []string{"A", "B"}, nil), KindNoCorrectAnswer},
		{"duplicate index", choiceQuestion("q9", MultipleChoice, []string{"A", "B", "C"}, []int{1, 1}), KindDuplicateIndex},
		{"empty id", choiceQuestion("", SingleChoice, []string{"A", "B"}, []int{0}), KindEmptyID},
		{"empty stem", Question{ID: "q10", Type: SingleChoice, Options: []string{"A", "B"}, Correct: []int{0}}, KindEmptyStem},
		{"zero type", Question{ID: "q11", Stem: "x"}, KindUnknownType},
		{"open without reference", Question{ID: "q12", Type: OpenEnded, Stem: "Explain"}, KindMissingReferenceAnswer},
		{"open with options", Question{ID: "q13", Type: OpenEnded, Stem: "Explain", ReferenceAnswer: "r", Options: []string{"A", "B"}}, KindUnexpectedOptions},
		{"bad source ref", Question{ID: "q14", Type: SingleChoice, Stem: "s", Options: []string{"A", "B"}, Correct: []int{0},
			SourceRefs: []SourceReference{{File: "a.md", Start: 200, End: 100}}}, KindInvalidSourceRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuestion(tt.q)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("NewQuestion: unexpected error %v", err)
				}
				return
			}
			if !IsKind(err, tt.wantKind) {
				t.Fatalf("NewQuestion error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestQuestionUnmarshalValidates(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"id":"q1","type":"single_choice","stem":"s","options":["A","B"],"correct":[0,1]}`), &q)
	if !IsKind(err, KindSingleChoiceArity) {
		t.Fatalf("expected single choice arity error, got %v", err)
	}

	err = json.Unmarshal([]byte(`{"id":"q1","type":"true_false","stem":"s"}`), &q)
	if !IsKind(err, KindUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}

	err = json.Unmarshal([]byte(`{"id":"q1","type":"multiple_choice","stem":"s","options":["A","B","C"],"correct":[0,2]}`), &q)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if q.Type != MultipleChoice {
		t.Errorf("expected multiple_choice, got %s", q.Type)
	}
}

func TestQuestionTypeRoundTrip(t *testing.T) {
	for _, typ := range []QuestionType{SingleChoice, MultipleChoice, OpenEnded} {
		b, err := json.Marshal(typ)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", typ, err)
		}
		var got QuestionType
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if got != typ {
			t.Errorf("round trip %v -> %s -> %v", typ, b, got)
		}
	}
	if _, err := json.Marshal(QuestionType(0)); err == nil {
		t.Error("expected zero QuestionType to fail marshalling")
	}
}

func TestSourceReference(t *testing.T) {
	if _, err := NewSourceReference("test.md", "Introduction", 100, 200); err != nil {
		t.Fatalf("valid reference: %v", err)
	}
	if _, err := NewSourceReference("test.md", "", 100, 100); err != nil {
		t.Fatalf("empty span should be valid: %v", err)
	}
	_, err := NewSourceReference("test.md", "", 200, 100)
	if !IsKind(err, KindInvalidSourceRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestExamConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*ExamConfig)
		wantKind ValidationKind
	}{
		{"defaults", func(*ExamConfig) {}, ""},
		{"with open ended", func(c *ExamConfig) { c.SingleChoiceRatio, c.MultipleChoiceRatio, c.OpenEndedRatio = 0.5, 0.3, 0.2 }, ""},
		{"sum too high", func(c *ExamConfig) { c.SingleChoiceRatio, c.MultipleChoiceRatio = 0.5, 0.6 }, KindRatioMismatch},
		{"sum too low", func(c *ExamConfig) { c.SingleChoiceRatio, c.MultipleChoiceRatio = 0.2, 0.2 }, KindRatioMismatch},
		{"negative ratio", func(c *ExamConfig) { c.SingleChoiceRatio, c.MultipleChoiceRatio = 1.3, -0.3 }, KindRatioOutOfRange},
		{"zero total", func(c *ExamConfig) { c.TotalQuestions = 0 }, KindInvalidTotal},
		{"russian", func(c *ExamConfig) { c.Language = "ru" }, ""},
		{"regional tag", func(c *ExamConfig) { c.Language = "en-US" }, ""},
		{"unsupported language", func(c *ExamConfig) { c.Language = "de" }, KindUnsupportedLanguage},
		{"bad difficulty", func(c *ExamConfig) { c.Difficulty = "extreme" }, KindInvalidDifficulty},
		{"mixed difficulty", func(c *ExamConfig) { c.Difficulty = DifficultyMixed }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultExamConfig()
			tt.mutate(&cfg)
			_, err := NewExamConfig(cfg)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !IsKind(err, tt.wantKind) {
				t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestExamConfigUnmarshalDefaults(t *testing.T) {
	var cfg ExamConfig
	if err := json.Unmarshal([]byte(`{"total_questions": 10}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.TotalQuestions != 10 || cfg.SingleChoiceRatio != 0.7 || cfg.MultipleChoiceRatio != 0.3 {
		t.Errorf("unexpected config %+v", cfg)
	}

	err := json.Unmarshal([]byte(`{"single_choice_ratio": 0.5, "multiple_choice_ratio": 0.6}`), &cfg)
	if !IsKind(err, KindRatioMismatch) {
		t.Fatalf("expected ratio mismatch, got %v", err)
	}
}

func TestExamValidate(t *testing.T) {
	q1 := choiceQuestion("q1", SingleChoice, []string{"A", "B"}, []int{0})
	q2 := choiceQuestion("q2", SingleChoice, []string{"A", "B"}, []int{1})

	exam, err := NewExam("exam1", []Question{q1, q2}, DefaultExamConfig())
	if err != nil {
		t.Fatalf("NewExam: %v", err)
	}
	if len(exam.QuestionIndex()) != 2 {
		t.Errorf("expected 2 indexed questions")
	}

	dup := q2
	dup.ID = "q1"
	_, err = NewExam("exam1", []Question{q1, dup}, DefaultExamConfig())
	if !IsKind(err, KindDuplicateQuestionID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	_, err = NewExam("", []Question{q1}, DefaultExamConfig())
	if !IsKind(err, KindEmptyExamID) {
		t.Fatalf("expected empty exam id error, got %v", err)
	}

	bad := q1
	bad.Correct = []int{7}
	_, err = NewExam("exam1", []Question{bad}, DefaultExamConfig())
	if !IsKind(err, KindIndexOutOfRange) {
		t.Fatalf("expected nested index error, got %v", err)
	}
}

func TestExamUnmarshal(t *testing.T) {
	doc := `{
		"exam_id": "ex-1",
		"questions": [
			{"id": "q1", "type": "single_choice", "stem": "2+2?", "options": ["3", "4"], "correct": [1]},
			{"id": "q2", "type": "open_ended", "stem": "Why?", "reference_answer": "Because", "rubric": ["cause"]}
		]
	}`
	var exam Exam
	if err := json.Unmarshal([]byte(doc), &exam); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if exam.ConfigUsed.TotalQuestions != 20 {
		t.Errorf("missing config_used should default, got %+v", exam.ConfigUsed)
	}

	dupDoc := `{"exam_id": "ex-1", "questions": [
		{"id": "q1", "type": "single_choice", "stem": "a", "options": ["3", "4"], "correct": [1]},
		{"id": "q1", "type": "single_choice", "stem": "b", "options": ["3", "4"], "correct": [0]}
	]}`
	err := json.Unmarshal([]byte(dupDoc), &exam)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Kind != KindDuplicateQuestionID {
		t.Fatalf("expected duplicate id, got %v", err)
	}
}

func TestGradeRequestValidate(t *testing.T) {
	if err := (GradeRequest{ExamID: "e"}).Validate(); !errors.Is(err, ErrEmptyAnswerSet) {
		t.Fatalf("expected ErrEmptyAnswerSet, got %v", err)
	}
	req := GradeRequest{ExamID: "e", Answers: []StudentAnswer{{QuestionID: "q1", Choice: []int{0}}}}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGradeSummaryValidate(t *testing.T) {
	if err := (GradeSummary{Total: 10, Correct: 8, ScorePercent: 80}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := (GradeSummary{Total: 10, Correct: 15}).Validate()
	if !IsKind(err, KindSummaryOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
