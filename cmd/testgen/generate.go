package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	appI18n "github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write one exam question from study material",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("content", "", "Markdown file with the study material, or - for stdin (required)")
	f.String("type", "single_choice", "Question type (single_choice, multiple_choice, open_ended)")
	f.String("difficulty", string(model.DifficultyMedium), "Question difficulty (easy, medium, hard)")
	f.StringP("provider", "p", "openai", "LLM provider (openai, yandex, anthropic, gemini)")
	f.StringP("model", "m", "", "Model name (default: the provider's default model)")
	f.String("id", "", "Question id (default: generated)")
	addCommonFlags(cmd)
	addProviderFlags(cmd)

	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	qtype, err := model.ParseQuestionType(v.GetString("type"))
	if err != nil {
		return err
	}
	difficulty := model.Difficulty(strings.ToLower(v.GetString("difficulty")))
	switch difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", difficulty)
	}

	content, err := readContent(cmd.InOrStdin(), v.GetString("content"))
	if err != nil {
		return err
	}

	registry := llm.NewRegistry(llmConfig(v), slog.Default())
	client, err := registry.Client(ctx, v.GetString("provider"))
	if err != nil {
		return err
	}

	q, err := client.GenerateQuestion(ctx, v.GetString("model"), llm.GenerateInput{
		ID:         v.GetString("id"),
		Content:    content,
		Type:       qtype,
		Difficulty: difficulty,
		Language:   appI18n.Match(v.GetString("lang")),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}

func readContent(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("content %s is empty", path)
	}
	return string(data), nil
}
