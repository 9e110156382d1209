package llm

import (
	"context"
	"log/slog"
	"time"
)

// LoggingProvider is a decorator that writes one slog record per call.
type LoggingProvider struct {
	inner  Provider
	logger *slog.Logger
}

// WithLogging wraps a Provider with call logging. A nil logger uses slog.Default.
func WithLogging(p Provider, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	attrs := []any{
		"provider", l.inner.Name(),
		"model", modelOrDefault(req, l.inner),
		"purpose", PurposeFrom(ctx),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if req.Schema != nil {
		attrs = append(attrs, "schema", req.Schema.Name)
	}
	if resp != nil {
		attrs = append(attrs,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
		)
	}

	if err != nil {
		l.logger.WarnContext(ctx, "LLM request failed", append(attrs, "error", err)...)
		return resp, err
	}
	l.logger.DebugContext(ctx, "LLM request", attrs...)
	return resp, nil
}

func (l *LoggingProvider) Name() string { return l.inner.Name() }

func (l *LoggingProvider) DefaultModel() string { return l.inner.DefaultModel() }
