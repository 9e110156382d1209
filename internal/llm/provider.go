package llm

import (
	"context"
	"encoding/json"
)

// Provider is the transport-level abstraction over a model vendor.
// Implementations are safe for concurrent use: the model travels with each
// Request instead of living on the provider.
type Provider interface {
	// Generate sends a prompt and returns the response. When req.Schema is
	// set the response Content is JSON validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name, e.g. "openai".
	Name() string

	// DefaultModel returns the model used when Request.Model is empty.
	DefaultModel() string
}

// Request describes what to send to the model.
type Request struct {
	// Model selects the model for this call. Empty means the provider default.
	Model string

	// System is the system prompt.
	System string

	// Messages is the conversation history. Exam prompts are single-turn.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil, the response Content is the raw text.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies the schema and keys the compiled-schema cache.
	Name string

	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Content is validated JSON when the request had a Schema, raw text otherwise.
	Content json.RawMessage

	Usage Usage

	// Model is the model that served the request.
	Model string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func modelOrDefault(req Request, p Provider) string {
	if req.Model != "" {
		return req.Model
	}
	return p.DefaultModel()
}
