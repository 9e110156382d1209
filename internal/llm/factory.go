package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// NewProvider creates the named Provider from configuration, wrapped with
// retry and logging middleware.
func NewProvider(ctx context.Context, name string, cfg Config, logger *slog.Logger) (Provider, error) {
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}

	var base Provider
	var err error

	switch name {
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderYandex:
		base, err = NewYandexProvider(cfg.Yandex)
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", name, err)
	}

	return Decorate(base, cfg.Retry, logger), nil
}

// Decorate wraps p as caller → retry → logging → p.
func Decorate(p Provider, retry RetryConfig, logger *slog.Logger) Provider {
	return WithRetry(WithLogging(p, logger), retry)
}

// Registry builds and caches one Client per provider name.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry creates a Registry. A nil logger uses slog.Default.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, logger: logger, clients: make(map[string]*Client)}
}

// Register installs p under its name, replacing any cached client.
func (r *Registry) Register(p Provider) *Client {
	c := NewClient(p, r.clientOptions())
	r.mu.Lock()
	r.clients[p.Name()] = c
	r.mu.Unlock()
	return c
}

// Client returns the client for the named provider, building it on first use.
func (r *Registry) Client(ctx context.Context, name string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[name]; ok {
		return c, nil
	}

	p, err := NewProvider(ctx, name, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	c := NewClient(p, r.clientOptions())
	r.clients[name] = c
	r.logger.Info("provider initialized", "provider", name, "default_model", p.DefaultModel())
	return c, nil
}

func (r *Registry) clientOptions() ClientOptions {
	return ClientOptions{
		Variant: r.cfg.Variant,
		Timeout: r.cfg.Timeout,
		Logger:  r.logger,
	}
}
