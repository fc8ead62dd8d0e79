package summarize

import (
	"context"
	"encoding/json"
	"time"

	"whatsnew/internal/config"
)

// Request is a single summarization call: prompts for hosted models plus
// the structured context so the heuristic provider never has to
// reconstruct its input from rendered text.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Schema       map[string]any
	Context      *UnitContext
}

// Response carries the model actually used and its untrusted JSON payload;
// callers must sanitize before trusting the shape.
type Response struct {
	Model   string
	Payload json.RawMessage
}

// Provider is the summarization capability. Implementations: OpenAI,
// Anthropic, and the heuristic fallback.
type Provider interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// providerAttempts bounds hosted-provider retries.
const providerAttempts = 3

// FromConfig selects a provider: an explicit provider.name wins; otherwise
// credential presence picks one; otherwise the heuristic fallback. A
// construction failure (missing credential for an explicit name) degrades
// to fallback with a recorded warning, never an aborted run.
func FromConfig(cfg *config.Configuration, warn func(format string, args ...any)) Provider {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	model := cfg.Provider.Model

	switch cfg.Provider.Name {
	case "openai":
		if cfg.Credentials.OpenAIAPIKey == "" {
			warn("provider openai selected but OPENAI_API_KEY is missing; using fallback summarization")
			return NewFallbackProvider(model)
		}
		return NewOpenAIProvider(cfg.Credentials.OpenAIAPIKey, model)
	case "anthropic":
		if cfg.Credentials.AnthropicAPIKey == "" {
			warn("provider anthropic selected but ANTHROPIC_API_KEY is missing; using fallback summarization")
			return NewFallbackProvider(model)
		}
		return NewAnthropicProvider(cfg.Credentials.AnthropicAPIKey, model)
	case "fallback":
		return NewFallbackProvider(model)
	case "":
		// Select by credential presence.
	default:
		warn("unknown provider %q; using fallback summarization", cfg.Provider.Name)
		return NewFallbackProvider(model)
	}

	if cfg.Credentials.OpenAIAPIKey != "" {
		return NewOpenAIProvider(cfg.Credentials.OpenAIAPIKey, model)
	}
	if cfg.Credentials.AnthropicAPIKey != "" {
		return NewAnthropicProvider(cfg.Credentials.AnthropicAPIKey, model)
	}
	warn("no provider credential configured; using fallback summarization")
	return NewFallbackProvider(model)
}

// withBackoff runs fn up to attempts times with exponential backoff,
// honoring context cancellation between attempts.
func withBackoff(ctx context.Context, attempts int, fn func() error) error {
	delay := time.Second
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}
	return err
}
