// Package prompts builds the localized prompts sent to providers when a
// model answers, grades or writes exam questions.
package prompts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict awards a rubric point only for explicit, correct coverage.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient awards a rubric point for reasonable understanding.
	PromptLenient PromptVariant = "lenient"
)

var variantMessages = map[PromptVariant]string{
	PromptStrict:   "GradeStrict",
	PromptStandard: "GradeStandard",
	PromptLenient:  "GradeLenient",
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	_, ok := variantMessages[PromptVariant(v)]
	return ok
}

// Prompt is a system instruction plus a single user message.
type Prompt struct {
	System string
	User   string
}

// BuildAnswerPrompt asks a model to answer q. The language is taken from
// the localizer stored in ctx.
func BuildAnswerPrompt(ctx context.Context, q model.Question) (Prompt, error) {
	var sb strings.Builder
	sb.WriteString(i18n.T(ctx, "QuestionLabel") + ": " + q.Stem + "\n\n")

	switch q.Type {
	case model.SingleChoice, model.MultipleChoice:
		sb.WriteString(i18n.T(ctx, "OptionsLabel") + ":\n")
		writeOptions(&sb, q.Options)
		sb.WriteString("\n")
		if q.Type == model.SingleChoice {
			sb.WriteString(i18n.T(ctx, "AnswerSingleChoice") + "\n")
		} else {
			sb.WriteString(i18n.T(ctx, "AnswerMultipleChoice") + "\n")
		}
		sb.WriteString(i18n.T(ctx, "AnswerChoiceFormat") + "\n")
	case model.OpenEnded:
		sb.WriteString(i18n.T(ctx, "AnswerOpenEnded") + "\n")
		sb.WriteString(i18n.T(ctx, "AnswerOpenFormat") + "\n")
	default:
		return Prompt{}, fmt.Errorf("build answer prompt: unsupported question type %v", q.Type)
	}

	return Prompt{System: i18n.T(ctx, "AnswerSystem"), User: sb.String()}, nil
}

// GradeData holds the inputs of an open-ended grading prompt.
type GradeData struct {
	Stem            string
	ReferenceAnswer string
	Rubric          []string
	Answer          string
}

// BuildGradePrompt asks a model to score an open-ended answer against the
// reference answer and rubric using the given variant.
func BuildGradePrompt(ctx context.Context, variant PromptVariant, data GradeData) (Prompt, error) {
	instruction, ok := variantMessages[variant]
	if !ok {
		return Prompt{}, fmt.Errorf("invalid prompt variant: %q", variant)
	}

	var sb strings.Builder
	sb.WriteString(i18n.T(ctx, "QuestionLabel") + ": " + data.Stem + "\n\n")
	sb.WriteString(i18n.T(ctx, "ReferenceAnswerLabel") + ":\n" + data.ReferenceAnswer + "\n\n")
	if len(data.Rubric) > 0 {
		sb.WriteString(i18n.T(ctx, "RubricLabel") + ":\n")
		writeOptions(&sb, data.Rubric)
		sb.WriteString("\n")
	}
	sb.WriteString(i18n.T(ctx, "AnswerLabel") + ":\n<student-answer>\n")
	sb.WriteString(SanitizeAnswer(ctx, data.Answer))
	sb.WriteString("\n</student-answer>\n\n")
	sb.WriteString(i18n.T(ctx, instruction) + "\n")
	sb.WriteString(i18n.T(ctx, "GradeFormat") + "\n")

	return Prompt{System: i18n.T(ctx, "GradeSystem"), User: sb.String()}, nil
}

// BuildGeneratePrompt asks a model to write one question of type typ from content.
func BuildGeneratePrompt(ctx context.Context, content string, typ model.QuestionType, difficulty string) (Prompt, error) {
	var typeMsg string
	switch typ {
	case model.SingleChoice:
		typeMsg = "GenerateSingleChoice"
	case model.MultipleChoice:
		typeMsg = "GenerateMultipleChoice"
	case model.OpenEnded:
		typeMsg = "GenerateOpenEnded"
	default:
		return Prompt{}, fmt.Errorf("build generate prompt: unsupported question type %v", typ)
	}

	var sb strings.Builder
	sb.WriteString(i18n.Td(ctx, "GenerateInstruction", map[string]any{"Difficulty": difficulty}) + "\n")
	sb.WriteString(i18n.T(ctx, typeMsg) + "\n\n")
	sb.WriteString(i18n.T(ctx, "ContentLabel") + ":\n")
	sb.WriteString(strings.TrimSpace(content))
	sb.WriteString("\n")

	return Prompt{System: i18n.T(ctx, "GenerateSystem"), User: sb.String()}, nil
}

func writeOptions(sb *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(sb, "%d. %s\n", i, item)
	}
}

// SanitizeAnswer strips tags that could break out of the answer block and
// truncates very long answers.
func SanitizeAnswer(ctx context.Context, answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return i18n.T(ctx, "NoAnswer")
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n" + i18n.T(ctx, "AnswerTruncated")
	}

	return answer
}
