package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm/prompts"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/model"
)

func main() {
	// Variables from .env become defaults for the TESTGEN_* and provider keys.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "testgen",
		Short:        "Exam grading and multi-provider LLM evaluation",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), evaluateCmd(), compareCmd(), historyCmd(), generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `testgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", "data", "Data directory (exams in <data-dir>/out, results in <data-dir>/results)")
	f.StringP("lang", "l", "en", "Language of prompts and reports (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addProviderFlags(cmd *cobra.Command) {
	defaults := llm.DefaultConfig()
	f := cmd.Flags()
	f.String("openai-api-key", "", "OpenAI API key")
	f.String("openai-base-url", "", "Base URL for OpenAI-compatible APIs")
	f.String("openai-model", defaults.OpenAI.Model, "Default OpenAI model")
	f.String("yandex-api-key", "", "Yandex Cloud API key")
	f.String("yandex-folder-id", "", "Yandex Cloud folder ID")
	f.String("yandex-model", defaults.Yandex.Model, "Default Yandex model")
	f.String("yandex-base-url", defaults.Yandex.BaseURL, "Yandex Foundation Models endpoint")
	f.String("anthropic-api-key", "", "Anthropic API key")
	f.String("anthropic-model", defaults.Anthropic.Model, "Default Anthropic model")
	f.String("gemini-api-key", "", "Gemini API key")
	f.String("gemini-model", defaults.Gemini.Model, "Default Gemini model")
	f.Int("retry-attempts", defaults.Retry.MaxAttempts, "Attempts per provider call")
	f.Duration("retry-initial-wait", defaults.Retry.InitialWait, "First retry backoff")
	f.Duration("retry-max-wait", defaults.Retry.MaxWait, "Maximum retry backoff")
	f.Duration("llm-timeout", defaults.Timeout, "Timeout of one capability call including retries")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TESTGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Provider credentials are also read under their conventional names.
	_ = v.BindEnv("openai-api-key", "TESTGEN_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("yandex-api-key", "TESTGEN_YANDEX_API_KEY", "YANDEX_CLOUD_API_KEY")
	_ = v.BindEnv("yandex-folder-id", "TESTGEN_YANDEX_FOLDER_ID", "YANDEX_FOLDER_ID")
	_ = v.BindEnv("anthropic-api-key", "TESTGEN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini-api-key", "TESTGEN_GEMINI_API_KEY", "GEMINI_API_KEY")

	v.SetConfigName("testgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/testgen")
	v.AddConfigPath("/etc/testgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// llmConfig builds the provider configuration from flags, environment and
// config file.
func llmConfig(v *viper.Viper) llm.Config {
	cfg := llm.DefaultConfig()
	cfg.OpenAI = llm.OpenAIConfig{
		APIKey:  v.GetString("openai-api-key"),
		Model:   v.GetString("openai-model"),
		BaseURL: v.GetString("openai-base-url"),
	}
	cfg.Yandex = llm.YandexConfig{
		APIKey:   v.GetString("yandex-api-key"),
		FolderID: v.GetString("yandex-folder-id"),
		Model:    v.GetString("yandex-model"),
		BaseURL:  v.GetString("yandex-base-url"),
	}
	cfg.Anthropic = llm.AnthropicConfig{
		APIKey: v.GetString("anthropic-api-key"),
		Model:  v.GetString("anthropic-model"),
	}
	cfg.Gemini = llm.GeminiConfig{
		APIKey: v.GetString("gemini-api-key"),
		Model:  v.GetString("gemini-model"),
	}
	if n := v.GetInt("retry-attempts"); n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	if d := v.GetDuration("retry-initial-wait"); d > 0 {
		cfg.Retry.InitialWait = d
	}
	if d := v.GetDuration("retry-max-wait"); d > 0 {
		cfg.Retry.MaxWait = d
	}
	cfg.Timeout = v.GetDuration("llm-timeout")

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	cfg.Variant = variant
	return cfg
}

func examsDir(v *viper.Viper) string   { return filepath.Join(v.GetString("data-dir"), "out") }
func resultsDir(v *viper.Viper) string { return filepath.Join(v.GetString("data-dir"), "results") }

// parseTarget parses "model:provider". The provider follows the last colon
// so model names may contain colons themselves.
func parseTarget(s string) (model.Target, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return model.Target{}, fmt.Errorf("model %q: want model_name:provider", s)
	}
	return model.Target{ModelName: s[:i], Provider: s[i+1:]}, nil
}

func formatAccuracy(a float64) string {
	return fmt.Sprintf("%.1f%%", a*100)
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
