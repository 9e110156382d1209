package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm/prompts"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

const (
	answerMaxTokens   = 1024
	gradeMaxTokens    = 1024
	generateMaxTokens = 2048

	// scoreTolerance is how far a reported score may drift from the rubric
	// average before the disagreement is logged.
	scoreTolerance = 0.01
)

// Answer is a model's reply to one exam question.
type Answer struct {
	Choice    []int  `json:"choice,omitempty"`
	Text      string `json:"text_answer,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// OpenEndedGrade is the assessment of one open-ended answer.
type OpenEndedGrade struct {
	Score        float64 `json:"score"`
	RubricScores []int   `json:"rubric_scores"`
	Feedback     string  `json:"feedback"`
}

// OpenEndedInput is what GradeOpenEnded needs to score an answer.
type OpenEndedInput struct {
	Question model.Question
	Answer   string
	Language string
}

// GenerateInput describes the question GenerateQuestion should write.
type GenerateInput struct {
	ID         string
	Content    string
	Type       model.QuestionType
	Difficulty model.Difficulty
	Language   string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Variant is the grading prompt variant. Empty or unknown means standard.
	Variant string
	// Timeout bounds each call including retries. Zero means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is the capability the evaluator drives: it answers, grades and
// writes questions through a Provider. The model is chosen per call.
type Client struct {
	provider Provider
	variant  prompts.PromptVariant
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient creates a Client over p.
func NewClient(p Provider, opts ClientOptions) *Client {
	variant := prompts.PromptStandard
	if prompts.IsValidVariant(opts.Variant) {
		variant = prompts.PromptVariant(opts.Variant)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider: p,
		variant:  variant,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Name returns the underlying provider's name.
func (c *Client) Name() string { return c.provider.Name() }

// DefaultModel returns the model used when a call passes an empty name.
func (c *Client) DefaultModel() string { return c.provider.DefaultModel() }

// AnswerQuestion asks modelName to answer q in lang. Choice answers are
// returned sorted and deduplicated, with every index inside the option range.
func (c *Client) AnswerQuestion(ctx context.Context, modelName string, q model.Question, lang string) (*Answer, error) {
	ctx = i18n.WithLanguage(WithPurpose(ctx, "answer"), lang)

	p, err := prompts.BuildAnswerPrompt(ctx, q)
	if err != nil {
		return nil, err
	}

	schema := openAnswerSchema
	if q.Type.IsChoice() {
		schema = choiceAnswerSchema
	}

	resp, err := c.generate(ctx, modelName, p, schema, 0.3, answerMaxTokens)
	if err != nil {
		if a, ok := c.answerFromText(q, err); ok {
			return a, nil
		}
		return nil, fmt.Errorf("answer question %s: %w", q.ID, err)
	}
	c.logger.Debug("LLM answer", "question_id", q.ID, "raw", string(resp.Content))

	var a Answer
	if err := json.Unmarshal(resp.Content, &a); err != nil {
		return nil, invalidf(resp.Content, "decode answer: %w", err)
	}
	return checkAnswer(q, a, resp.Content)
}

// answerFromText recovers an answer from a reply that was plain text
// instead of JSON, as some providers return for short answers.
func (c *Client) answerFromText(q model.Question, err error) (*Answer, bool) {
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		return nil, false
	}
	text := strings.TrimSpace(string(inv.Content))
	if text == "" || strings.HasPrefix(text, "{") {
		// A malformed JSON object is a real failure, not a prose reply.
		return nil, false
	}

	if q.Type.IsChoice() {
		choice, ok := ParseChoiceText(text, len(q.Options))
		if !ok {
			return nil, false
		}
		c.logger.Info("parsed choice from free-text reply", "question_id", q.ID, "choice", choice)
		return &Answer{Choice: choice, Reasoning: text}, true
	}

	c.logger.Info("using free-text reply as answer", "question_id", q.ID)
	return &Answer{Text: text}, true
}

func checkAnswer(q model.Question, a Answer, raw json.RawMessage) (*Answer, error) {
	switch q.Type {
	case model.SingleChoice, model.MultipleChoice:
		if len(a.Choice) == 0 {
			return nil, invalidf(raw, "answer to %s selects no option", q.ID)
		}
		for _, i := range a.Choice {
			if i < 0 || i >= len(q.Options) {
				return nil, invalidf(raw, "answer to %s selects option %d of %d", q.ID, i, len(q.Options))
			}
		}
		a.Choice = slices.Compact(slices.Sorted(slices.Values(a.Choice)))
		a.Text = ""
	case model.OpenEnded:
		a.Text = strings.TrimSpace(a.Text)
		if a.Text == "" {
			return nil, invalidf(raw, "answer to %s is empty", q.ID)
		}
		a.Choice = nil
	default:
		return nil, fmt.Errorf("answer question %s: unsupported type %v", q.ID, q.Type)
	}
	return &a, nil
}

// GradeOpenEnded asks modelName to score an answer to an open-ended
// question. With a rubric, the score is the fraction of rubric items met.
func (c *Client) GradeOpenEnded(ctx context.Context, modelName string, in OpenEndedInput) (*OpenEndedGrade, error) {
	q := in.Question
	if q.Type != model.OpenEnded {
		return nil, fmt.Errorf("grade question %s: not open-ended (%v)", q.ID, q.Type)
	}
	ctx = i18n.WithLanguage(WithPurpose(ctx, "grade"), in.Language)

	p, err := prompts.BuildGradePrompt(ctx, c.variant, prompts.GradeData{
		Stem:            q.Stem,
		ReferenceAnswer: q.ReferenceAnswer,
		Rubric:          q.Rubric,
		Answer:          in.Answer,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.generate(ctx, modelName, p, gradeSchema, 0.1, gradeMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("grade answer to %s: %w", q.ID, err)
	}

	var g OpenEndedGrade
	if err := json.Unmarshal(resp.Content, &g); err != nil {
		return nil, invalidf(resp.Content, "decode grade: %w", err)
	}
	return c.checkGrade(q, g, resp.Content)
}

func (c *Client) checkGrade(q model.Question, g OpenEndedGrade, raw json.RawMessage) (*OpenEndedGrade, error) {
	n := len(q.Rubric)
	if n == 0 {
		if len(g.RubricScores) != 0 {
			return nil, invalidf(raw, "got %d rubric scores for a question without rubric", len(g.RubricScores))
		}
		if g.Score < 0 || g.Score > 1 {
			return nil, invalidf(raw, "score %v outside [0, 1]", g.Score)
		}
		return &g, nil
	}

	if len(g.RubricScores) != n {
		return nil, invalidf(raw, "got %d rubric scores for %d rubric items", len(g.RubricScores), n)
	}
	sum := 0
	for i, s := range g.RubricScores {
		if s != 0 && s != 1 {
			return nil, invalidf(raw, "rubric score %d is %d, want 0 or 1", i, s)
		}
		sum += s
	}

	normalized := float64(sum) / float64(n)
	if math.Abs(normalized-g.Score) > scoreTolerance {
		c.logger.Warn("grading score disagrees with rubric scores",
			"question_id", q.ID, "reported", g.Score, "rubric_average", normalized)
	}
	g.Score = normalized
	return &g, nil
}

// GenerateQuestion asks modelName to write one question from in.Content.
// The result has passed model validation.
func (c *Client) GenerateQuestion(ctx context.Context, modelName string, in GenerateInput) (model.Question, error) {
	if in.Difficulty == "" {
		in.Difficulty = model.DifficultyMedium
	}
	ctx = i18n.WithLanguage(WithPurpose(ctx, "generate"), in.Language)

	p, err := prompts.BuildGeneratePrompt(ctx, in.Content, in.Type, string(in.Difficulty))
	if err != nil {
		return model.Question{}, err
	}

	schema := openQuestionSchema
	if in.Type.IsChoice() {
		schema = choiceQuestionSchema
	}

	resp, err := c.generate(ctx, modelName, p, schema, 0.7, generateMaxTokens)
	if err != nil {
		return model.Question{}, fmt.Errorf("generate %v question: %w", in.Type, err)
	}

	var raw struct {
		Stem            string   `json:"stem"`
		Options         []string `json:"options"`
		Correct         []int    `json:"correct"`
		ReferenceAnswer string   `json:"reference_answer"`
		Rubric          []string `json:"rubric"`
	}
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return model.Question{}, invalidf(resp.Content, "decode question: %w", err)
	}

	id := in.ID
	if id == "" {
		id = "q-" + uuid.NewString()[:8]
	}
	q, err := model.NewQuestion(model.Question{
		ID:              id,
		Type:            in.Type,
		Stem:            strings.TrimSpace(raw.Stem),
		Options:         raw.Options,
		Correct:         raw.Correct,
		ReferenceAnswer: strings.TrimSpace(raw.ReferenceAnswer),
		Rubric:          raw.Rubric,
	})
	if err != nil {
		return model.Question{}, &ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	return q, nil
}

// Ping sends a minimal request to check that the provider is reachable.
func (c *Client) Ping(ctx context.Context, modelName string) error {
	ctx = WithPurpose(ctx, "ping")
	_, err := c.generate(ctx, modelName, prompts.Prompt{User: "ping"}, nil, 0, 16)
	if err != nil {
		return fmt.Errorf("ping %s: %w", c.provider.Name(), err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, modelName string, p prompts.Prompt, schema *Schema, temperature float64, maxTokens int) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return c.provider.Generate(ctx, Request{
		Model:       modelName,
		System:      p.System,
		Messages:    []Message{{Role: RoleUser, Content: p.User}},
		Schema:      schema,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}
