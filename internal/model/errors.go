package model

import (
	"errors"
	"fmt"
)

// ValidationKind enumerates every way a data-model object can be rejected.
type ValidationKind string

const (
	KindEmptyID                ValidationKind = "empty_id"
	KindEmptyStem              ValidationKind = "empty_stem"
	KindUnknownType            ValidationKind = "unknown_type"
	KindTooFewOptions          ValidationKind = "too_few_options"
	KindEmptyOption            ValidationKind = "empty_option"
	KindNoCorrectAnswer        ValidationKind = "no_correct_answer"
	KindIndexOutOfRange        ValidationKind = "index_out_of_range"
	KindDuplicateIndex         ValidationKind = "duplicate_index"
	KindSingleChoiceArity      ValidationKind = "single_choice_arity"
	KindMissingReferenceAnswer ValidationKind = "missing_reference_answer"
	KindUnexpectedOptions      ValidationKind = "unexpected_options"
	KindDuplicateQuestionID    ValidationKind = "duplicate_question_id"
	KindEmptyExamID            ValidationKind = "empty_exam_id"
	KindRatioOutOfRange        ValidationKind = "ratio_out_of_range"
	KindRatioMismatch          ValidationKind = "ratio_mismatch"
	KindInvalidTotal           ValidationKind = "invalid_total"
	KindUnsupportedLanguage    ValidationKind = "unsupported_language"
	KindInvalidDifficulty      ValidationKind = "invalid_difficulty"
	KindInvalidSourceRange     ValidationKind = "invalid_source_range"
	KindSummaryOverflow        ValidationKind = "summary_overflow"
)

// ValidationError describes why an object failed its construction invariants.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Message)
}

// IsKind reports whether err is, or wraps, a ValidationError of the given kind.
func IsKind(err error, kind ValidationKind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}

// ErrEmptyAnswerSet is returned when a GradeRequest carries no answers.
var ErrEmptyAnswerSet = errors.New("grade request must contain at least one answer")
