package llm

import (
	"fmt"
	"time"
)

// Provider names accepted in model configurations.
const (
	ProviderOpenAI    = "openai"
	ProviderYandex    = "yandex"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config holds the configuration of every provider the registry can build.
type Config struct {
	OpenAI    OpenAIConfig
	Yandex    YandexConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Retry     RetryConfig

	// Timeout bounds a single capability call, including retries.
	Timeout time.Duration

	// Variant selects the open-ended grading prompt: strict, standard or lenient.
	Variant string
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Optional. Override for compatible APIs.
}

// YandexConfig holds Yandex Cloud Foundation Models configuration.
type YandexConfig struct {
	APIKey   string
	FolderID string
	Model    string
	BaseURL  string // Default: the Yandex Cloud OpenAI-compatible endpoint.
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Yandex:    YandexConfig{Model: "yandexgpt-lite", BaseURL: yandexBaseURL},
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 60 * time.Second,
		Variant: "standard",
	}
}

// Validate checks that the named provider has its required credentials.
func (c Config) Validate(provider string) error {
	switch provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai-api-key is required for the openai provider")
		}
	case ProviderYandex:
		if c.Yandex.APIKey == "" {
			return fmt.Errorf("yandex-api-key is required for the yandex provider")
		}
		if c.Yandex.FolderID == "" {
			return fmt.Errorf("yandex-folder-id is required for the yandex provider")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic-api-key is required for the anthropic provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini-api-key is required for the gemini provider")
		}
	case ProviderMock:
		// No credentials needed.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return nil
}
