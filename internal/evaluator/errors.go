package evaluator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResults is returned when a comparison is requested over nothing.
	ErrNoResults = errors.New("no model results to compare")

	// ErrPersistence matches every *PersistError.
	ErrPersistence = errors.New("persisting evaluation output failed")

	errNoSink = errors.New("no result sink configured")
)

// Stage names the step of a question at which a model failed.
type Stage string

const (
	StageAnswer Stage = "answer"
	StageGrade  Stage = "grade"
)

// ItemError is a failure isolated to one question of a run. It is kept on
// the QuestionRecord and never aborts the run.
type ItemError struct {
	QuestionID string
	Stage      Stage
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("question %s: %s: %v", e.QuestionID, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// PersistError reports that a result or report could not be saved. The
// value it was returned with is still valid.
type PersistError struct {
	What string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("save %s: %v", e.What, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersistence }
