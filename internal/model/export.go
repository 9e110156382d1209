package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Target names a model and the provider that serves it.
type Target struct {
	ModelName string `json:"model_name" yaml:"model_name"`
	Provider  string `json:"provider" yaml:"provider"`
}

func (t Target) String() string {
	return t.ModelName + " (" + t.Provider + ")"
}

// QuestionRecord is the outcome of one model answering one question.
// A record with Error set is never correct.
//
// In JSON the model's answer and the expected answer are written as
// model_answer and expected_answer: option indices for choice questions,
// text for open-ended ones.
type QuestionRecord struct {
	QuestionID   string
	QuestionType QuestionType
	Correct      bool

	// Choice questions.
	ModelChoice    []int
	ExpectedChoice []int
	Reasoning      string

	// Open-ended questions.
	ModelAnswer    string
	ExpectedAnswer string
	GradingScore   *float64
	Feedback       string
	RubricScores   []int

	Error string
	Err   error
}

type questionRecordJSON struct {
	QuestionID     string          `json:"question_id"`
	QuestionType   QuestionType    `json:"question_type"`
	Correct        bool            `json:"correct"`
	ModelAnswer    json.RawMessage `json:"model_answer,omitempty"`
	ExpectedAnswer json.RawMessage `json:"expected_answer,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	GradingScore   *float64        `json:"grading_score,omitempty"`
	Feedback       string          `json:"feedback,omitempty"`
	RubricScores   []int           `json:"rubric_scores,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func (r QuestionRecord) MarshalJSON() ([]byte, error) {
	out := questionRecordJSON{
		QuestionID:   r.QuestionID,
		QuestionType: r.QuestionType,
		Correct:      r.Correct,
		Reasoning:    r.Reasoning,
		GradingScore: r.GradingScore,
		Feedback:     r.Feedback,
		RubricScores: r.RubricScores,
		Error:        r.Error,
	}
	var given, expected any
	if r.QuestionType.IsChoice() {
		if r.ModelChoice != nil {
			given = r.ModelChoice
		}
		if r.ExpectedChoice != nil {
			expected = r.ExpectedChoice
		}
	} else {
		if r.ModelAnswer != "" {
			given = r.ModelAnswer
		}
		if r.ExpectedAnswer != "" {
			expected = r.ExpectedAnswer
		}
	}
	var err error
	if out.ModelAnswer, err = rawOrNil(given); err != nil {
		return nil, err
	}
	if out.ExpectedAnswer, err = rawOrNil(expected); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (r *QuestionRecord) UnmarshalJSON(data []byte) error {
	var in questionRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rec := QuestionRecord{
		QuestionID:   in.QuestionID,
		QuestionType: in.QuestionType,
		Correct:      in.Correct,
		Reasoning:    in.Reasoning,
		GradingScore: in.GradingScore,
		Feedback:     in.Feedback,
		RubricScores: in.RubricScores,
		Error:        in.Error,
	}
	if in.QuestionType.IsChoice() {
		if err := decodeRaw(in.ModelAnswer, &rec.ModelChoice); err != nil {
			return fmt.Errorf("question %s: model_answer: %w", in.QuestionID, err)
		}
		if err := decodeRaw(in.ExpectedAnswer, &rec.ExpectedChoice); err != nil {
			return fmt.Errorf("question %s: expected_answer: %w", in.QuestionID, err)
		}
	} else {
		if err := decodeRaw(in.ModelAnswer, &rec.ModelAnswer); err != nil {
			return fmt.Errorf("question %s: model_answer: %w", in.QuestionID, err)
		}
		if err := decodeRaw(in.ExpectedAnswer, &rec.ExpectedAnswer); err != nil {
			return fmt.Errorf("question %s: expected_answer: %w", in.QuestionID, err)
		}
	}
	*r = rec
	return nil
}

func rawOrNil(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeRaw(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Failed reports whether the record carries a provider or parsing failure.
func (r QuestionRecord) Failed() bool {
	return r.Error != "" || r.Err != nil
}

// ResultMetadata describes the conditions of an evaluation run.
type ResultMetadata struct {
	RunID      string     `json:"run_id"`
	Language   string     `json:"language"`
	ExamConfig ExamConfig `json:"exam_config"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	Failed     int        `json:"failed_questions"`
}

// ModelTestResult is the immutable outcome of one model answering one exam.
type ModelTestResult struct {
	ModelName          string           `json:"model_name"`
	Provider           string           `json:"provider"`
	ExamID             string           `json:"exam_id"`
	TotalQuestions     int              `json:"total_questions"`
	CorrectCount       int              `json:"correct_count"`
	Accuracy           float64          `json:"accuracy"`
	PerQuestionResults []QuestionRecord `json:"per_question_results"`
	Metadata           ResultMetadata   `json:"metadata"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Target returns the model/provider pair the result belongs to.
func (r *ModelTestResult) Target() Target {
	return Target{ModelName: r.ModelName, Provider: r.Provider}
}

// ModelSummary is one row of a comparison report.
type ModelSummary struct {
	ModelName    string  `json:"model_name"`
	Provider     string  `json:"provider"`
	Accuracy     float64 `json:"accuracy"`
	CorrectCount int     `json:"correct_count"`
	AIPassRate   float64 `json:"ai_pass_rate"`
}

// QuestionBreakdown lists which models got one question right.
type QuestionBreakdown struct {
	QuestionType    QuestionType `json:"question_type"`
	ModelsCorrect   []string     `json:"models_correct"`
	ModelsIncorrect []string     `json:"models_incorrect"`
}

// ComparisonReport aggregates several runs over the same exam.
type ComparisonReport struct {
	ExamID               string                       `json:"exam_id"`
	TotalQuestions       int                          `json:"total_questions"`
	Models               []ModelSummary               `json:"models"`
	BestModel            string                       `json:"best_model"`
	BestAccuracy         float64                      `json:"best_accuracy"`
	PerQuestionBreakdown map[string]QuestionBreakdown `json:"per_question_breakdown"`
	Timestamp            time.Time                    `json:"timestamp"`
	ComparisonFile       string                       `json:"comparison_file,omitempty"`
}
