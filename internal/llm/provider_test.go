package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"b":2}`)},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp1.Content) != `{"a":1}` {
		t.Fatalf("expected {\"a\":1}, got %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Model: "m2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp2.Content) != `{"b":2}` {
		t.Fatalf("expected {\"b\":2}, got %s", resp2.Content)
	}
	if resp2.Model != "m2" {
		t.Fatalf("expected model m2, got %q", resp2.Model)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})

	req := Request{
		Model:    "gpt-4o",
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].Model != "gpt-4o" || mock.Calls[0].System != "sys" {
		t.Fatalf("unexpected recorded call: %+v", mock.Calls[0])
	}
}

func TestMockProvider_ValidatesSchema(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"choice": "one"}`)})

	_, err := mock.Generate(context.Background(), Request{Schema: choiceAnswerSchema})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.Remaining() != 1 {
		t.Fatal("cancelled call should not consume a response")
	}
}

func TestMockProvider_AddJSON(t *testing.T) {
	mock := NewMockProvider()
	mock.AddJSON(map[string]any{"choice": []int{1}, "reasoning": "r"})

	resp, err := mock.Generate(context.Background(), Request{Schema: choiceAnswerSchema})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"choice":[1],"reasoning":"r"}` {
		t.Fatalf("unexpected content %s", resp.Content)
	}
}

func TestErrorTypes(t *testing.T) {
	inner := errors.New("boom")

	if !errors.Is(&ErrRateLimit{Err: inner}, inner) {
		t.Error("ErrRateLimit should unwrap")
	}
	if !errors.Is(&ErrInvalidResponse{Err: inner}, inner) {
		t.Error("ErrInvalidResponse should unwrap")
	}
	if !errors.Is(&ErrProviderUnavailable{Err: inner}, inner) {
		t.Error("ErrProviderUnavailable should unwrap")
	}
	if (&ErrProviderUnavailable{}).Error() != "LLM provider unavailable" {
		t.Error("unexpected message for empty ErrProviderUnavailable")
	}
}

func TestResolveModel(t *testing.T) {
	if got := resolveModel("claude-haiku", anthropicModels); got != "claude-haiku-4-5-20251001" {
		t.Errorf("friendly name not resolved: %q", got)
	}
	if got := resolveModel("custom-model-id", anthropicModels); got != "custom-model-id" {
		t.Errorf("direct id should pass through: %q", got)
	}
}
