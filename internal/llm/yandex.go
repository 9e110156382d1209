package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const yandexBaseURL = "https://llm.api.cloud.yandex.net/v1"

// YandexProvider implements Provider against the OpenAI-compatible endpoint
// of Yandex Cloud Foundation Models. The endpoint has no native structured
// output, so the schema is described in the system prompt and the first
// JSON object in the reply is validated.
type YandexProvider struct {
	client   *openai.Client
	folderID string
	model    string
}

// NewYandexProvider creates a new Yandex provider.
func NewYandexProvider(cfg YandexConfig) (*YandexProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("yandex API key is required")
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("yandex folder ID is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = yandexBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{
		Transport: &folderTransport{folderID: cfg.FolderID, base: http.DefaultTransport},
	}

	return &YandexProvider{
		client:   openai.NewClientWithConfig(config),
		folderID: cfg.FolderID,
		model:    cfg.Model,
	}, nil
}

func (p *YandexProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.Schema != nil {
		instr, err := schemaInstruction(req.Schema)
		if err != nil {
			return nil, err
		}
		system = strings.TrimSpace(system + "\n\n" + instr)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.modelURI(modelOrDefault(req, p)),
		Messages:    buildOpenAIMessages(system, req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, mapOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, invalidf(nil, "no choices in Yandex response")
	}

	text := resp.Choices[0].Message.Content
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		return nil, &ErrMaxTokensExceeded{Content: json.RawMessage(text)}
	}

	content := json.RawMessage(text)
	if req.Schema != nil {
		obj, ok := extractJSONObject(text)
		if !ok {
			return nil, invalidf(content, "no JSON object in reply")
		}
		if err := validateResponse(req.Schema, json.RawMessage(obj)); err != nil {
			// Keep the full reply so callers can fall back to text parsing.
			var inv *ErrInvalidResponse
			if errors.As(err, &inv) {
				inv.Content = content
			}
			return nil, err
		}
		content = json.RawMessage(obj)
	}

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:      resp.Model,
		StopReason: mapOpenAIStopReason(resp.Choices[0].FinishReason),
	}, nil
}

func (p *YandexProvider) Name() string { return ProviderYandex }

func (p *YandexProvider) DefaultModel() string { return p.model }

// modelURI expands a short model name to gpt://<folder>/<model>/latest.
func (p *YandexProvider) modelURI(name string) string {
	if strings.Contains(name, "://") {
		return name
	}
	if strings.Contains(name, "/") {
		return fmt.Sprintf("gpt://%s/%s", p.folderID, name)
	}
	return fmt.Sprintf("gpt://%s/%s/latest", p.folderID, name)
}

func schemaInstruction(s *Schema) (string, error) {
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return "Respond with a single JSON object that conforms to this JSON Schema and nothing else:\n" + string(def), nil
}

// folderTransport adds the folder header required by Yandex Cloud.
type folderTransport struct {
	folderID string
	base     http.RoundTripper
}

func (t *folderTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("x-folder-id", t.folderID)
	return t.base.RoundTrip(r)
}
