// Package evaluator drives language models through exams and aggregates
// their results into comparison reports.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/grader"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

// PassThreshold is the minimum open-ended grading score counted as correct.
const PassThreshold = 0.7

// Capability is what the evaluator needs from a provider. *llm.Client
// implements it.
type Capability interface {
	AnswerQuestion(ctx context.Context, modelName string, q model.Question, lang string) (*llm.Answer, error)
	GradeOpenEnded(ctx context.Context, modelName string, in llm.OpenEndedInput) (*llm.OpenEndedGrade, error)
}

// Resolver returns the capability serving a provider name.
type Resolver interface {
	Capability(ctx context.Context, provider string) (Capability, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, provider string) (Capability, error)

func (f ResolverFunc) Capability(ctx context.Context, provider string) (Capability, error) {
	return f(ctx, provider)
}

// FromRegistry resolves providers through an llm.Registry.
func FromRegistry(r *llm.Registry) Resolver {
	return ResolverFunc(func(ctx context.Context, provider string) (Capability, error) {
		c, err := r.Client(ctx, provider)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Sink persists results and reports and returns where they were written.
type Sink interface {
	SaveResult(ctx context.Context, r *model.ModelTestResult) (string, error)
	SaveComparison(ctx context.Context, r *model.ComparisonReport) (string, error)
}

// Options controls a run.
type Options struct {
	// Language of the prompts. Empty uses the exam's language.
	Language string
	// Save persists each finished result through the Sink.
	Save bool
	// Concurrency is the number of models BatchTestModels runs at once.
	// Values below 2 run them one after another.
	Concurrency int
}

// Evaluator runs models against exams.
type Evaluator struct {
	resolver Resolver
	sink     Sink
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Evaluator. sink may be nil when nothing is saved.
func New(resolver Resolver, sink Sink, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{resolver: resolver, sink: sink, logger: logger, now: time.Now}
}

// TestModelOnExam has one model answer every question of exam in order.
//
// A failing question is recorded as incorrect and the run continues. When
// ctx is cancelled, the partial result is returned with
// Metadata.Cancelled set, together with the context error. A save failure
// is returned as a *PersistError next to the complete result.
func (e *Evaluator) TestModelOnExam(ctx context.Context, exam model.Exam, target model.Target, opts Options) (*model.ModelTestResult, error) {
	capability, err := e.resolver.Capability(ctx, target.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %q: %w", target.Provider, err)
	}

	lang := opts.Language
	if lang == "" {
		lang = exam.ConfigUsed.Language
	}

	res := &model.ModelTestResult{
		ModelName:          target.ModelName,
		Provider:           target.Provider,
		ExamID:             exam.ExamID,
		TotalQuestions:     len(exam.Questions),
		PerQuestionResults: make([]model.QuestionRecord, 0, len(exam.Questions)),
		Metadata: model.ResultMetadata{
			RunID:      uuid.NewString(),
			Language:   lang,
			ExamConfig: exam.ConfigUsed,
		},
	}
	logger := e.logger.With("run_id", res.Metadata.RunID, "model", target.ModelName, "provider", target.Provider)
	logger.Info("testing model on exam", "exam_id", exam.ExamID, "questions", len(exam.Questions))

	for i, q := range exam.Questions {
		if err := ctx.Err(); err != nil {
			res.Metadata.Cancelled = true
			e.finish(res)
			logger.Warn("model run cancelled", "answered", i, "total", len(exam.Questions))
			return res, err
		}

		rec := e.runQuestion(ctx, capability, target.ModelName, q, lang)
		if err := ctx.Err(); err != nil {
			// A question interrupted by the cancellation is not a model failure.
			answered := i
			if !rec.Failed() {
				res.PerQuestionResults = append(res.PerQuestionResults, rec)
				answered++
			}
			res.Metadata.Cancelled = true
			e.finish(res)
			logger.Warn("model run cancelled", "answered", answered, "total", len(exam.Questions))
			return res, err
		}
		if rec.Failed() {
			res.Metadata.Failed++
			logger.Warn("question failed", "question_id", q.ID, "error", rec.Error)
		} else {
			logger.Debug("question answered", "question_id", q.ID, "correct", rec.Correct)
		}
		res.PerQuestionResults = append(res.PerQuestionResults, rec)
	}
	e.finish(res)

	logger.Info("model run finished",
		"correct", res.CorrectCount, "total", res.TotalQuestions,
		"accuracy", res.Accuracy, "failed", res.Metadata.Failed)

	if opts.Save {
		path, err := e.saveResult(ctx, res)
		if err != nil {
			return res, err
		}
		logger.Info("result saved", "path", path)
	}
	return res, nil
}

func (e *Evaluator) finish(res *model.ModelTestResult) {
	res.CorrectCount = 0
	for _, rec := range res.PerQuestionResults {
		if rec.Correct {
			res.CorrectCount++
		}
	}
	res.Accuracy = 0
	if res.TotalQuestions > 0 {
		res.Accuracy = float64(res.CorrectCount) / float64(res.TotalQuestions)
	}
	res.Timestamp = e.now()
}

func (e *Evaluator) runQuestion(ctx context.Context, c Capability, modelName string, q model.Question, lang string) model.QuestionRecord {
	rec := model.QuestionRecord{QuestionID: q.ID, QuestionType: q.Type}
	fail := func(stage Stage, err error) model.QuestionRecord {
		ie := &ItemError{QuestionID: q.ID, Stage: stage, Err: err}
		rec.Correct = false
		rec.Err = ie
		rec.Error = ie.Error()
		return rec
	}

	if q.Type.IsChoice() {
		rec.ExpectedChoice = slices.Clone(q.Correct)
	} else {
		rec.ExpectedAnswer = q.ReferenceAnswer
	}

	answer, err := c.AnswerQuestion(ctx, modelName, q, lang)
	if err != nil {
		return fail(StageAnswer, err)
	}
	if answer == nil {
		return fail(StageAnswer, &llm.ErrInvalidResponse{Err: errors.New("no answer returned")})
	}
	rec.Reasoning = answer.Reasoning

	switch q.Type {
	case model.SingleChoice:
		rec.ModelChoice = slices.Clone(answer.Choice)
		rec.Correct = grader.SingleChoiceCorrect(q.Correct, answer.Choice)
	case model.MultipleChoice:
		rec.ModelChoice = slices.Clone(answer.Choice)
		rec.Correct = grader.SameSet(q.Correct, answer.Choice)
	case model.OpenEnded:
		rec.ModelAnswer = answer.Text
		g, err := c.GradeOpenEnded(ctx, modelName, llm.OpenEndedInput{Question: q, Answer: answer.Text, Language: lang})
		if err != nil {
			return fail(StageGrade, err)
		}
		if g == nil {
			return fail(StageGrade, &llm.ErrInvalidResponse{Err: errors.New("no grade returned")})
		}
		score := g.Score
		rec.GradingScore = &score
		rec.Feedback = g.Feedback
		rec.RubricScores = g.RubricScores
		rec.Correct = score >= PassThreshold
	default:
		return fail(StageAnswer, fmt.Errorf("unsupported question type %v", q.Type))
	}
	return rec
}

func (e *Evaluator) saveResult(ctx context.Context, res *model.ModelTestResult) (string, error) {
	if e.sink == nil {
		return "", &PersistError{What: "model result", Err: errNoSink}
	}
	path, err := e.sink.SaveResult(ctx, res)
	if err != nil {
		return "", &PersistError{What: "model result", Err: err}
	}
	return path, nil
}

// BatchTestModels runs every target against exam and returns the results
// that completed, in the order of targets. Failed targets are logged and
// skipped. Cancellation stops further targets from starting.
func (e *Evaluator) BatchTestModels(ctx context.Context, exam model.Exam, targets []model.Target, opts Options) []*model.ModelTestResult {
	results := make([]*model.ModelTestResult, len(targets))

	run := func(i int) {
		res, err := e.TestModelOnExam(ctx, exam, targets[i], opts)
		switch {
		case err == nil:
			results[i] = res
		case errors.Is(err, ErrPersistence):
			e.logger.Warn("model result not saved", "model", targets[i].ModelName, "error", err)
			results[i] = res
		default:
			e.logger.Error("model run failed", "model", targets[i].ModelName, "provider", targets[i].Provider, "error", err)
		}
	}

	if opts.Concurrency < 2 {
		for i := range targets {
			if ctx.Err() != nil {
				break
			}
			run(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Concurrency)
		for i := range targets {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make([]*model.ModelTestResult, 0, len(targets))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	e.logger.Info("batch finished", "exam_id", exam.ExamID, "requested", len(targets), "completed", len(out))
	return out
}

// Compare builds a comparison report over results and, when save is set,
// persists it and records the path in ComparisonFile.
func (e *Evaluator) Compare(ctx context.Context, results []*model.ModelTestResult, save bool) (*model.ComparisonReport, error) {
	report, err := CompareModels(results)
	if err != nil {
		return nil, err
	}
	report.Timestamp = e.now()

	if !save {
		return report, nil
	}
	if e.sink == nil {
		return report, &PersistError{What: "comparison report", Err: errNoSink}
	}
	path, err := e.sink.SaveComparison(ctx, report)
	if err != nil {
		return report, &PersistError{What: "comparison report", Err: err}
	}
	report.ComparisonFile = path
	e.logger.Info("comparison saved", "path", path, "best_model", report.BestModel)
	return report, nil
}
