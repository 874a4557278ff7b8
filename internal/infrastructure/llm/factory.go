// Package llm selects the model provider family once at configuration time.
package llm

import (
	"context"
	"fmt"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/infrastructure/llm/anthropic"
	"browser-pilot/internal/infrastructure/llm/googleai"
	"browser-pilot/internal/infrastructure/llm/openai"
)

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGoogle     Provider = "google"
)

type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the endpoint for OpenAI-compatible gateways.
	BaseURL string
	Logger  output.LoggerPort
}

// New builds the one adapter the process will use. Every call site after
// this point talks to the capability port, not to a provider.
func New(ctx context.Context, cfg Config) (output.LLMPort, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		c := openai.DefaultConfig(cfg.APIKey, cfg.Model)
		c.BaseURL = cfg.BaseURL
		c.Logger = cfg.Logger
		return openai.New(c), nil

	case ProviderOpenRouter:
		c := openai.OpenRouterConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		c.Logger = cfg.Logger
		return openai.New(c), nil

	case ProviderAnthropic:
		c := anthropic.DefaultConfig(cfg.APIKey, cfg.Model)
		c.Logger = cfg.Logger
		return anthropic.New(c)

	case ProviderGoogle:
		c := googleai.DefaultConfig(cfg.APIKey, cfg.Model)
		c.Logger = cfg.Logger
		return googleai.New(ctx, c)
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}
