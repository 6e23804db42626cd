package engine

import (
	"fmt"

	"github.com/kalambet/promptlab/internal/config"
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[string]string{
	config.ProviderOpenRouter: "google/gemini-2.5-flash",
	config.ProviderOpenAI:     "gpt-4o-mini",
	config.ProviderOllama:     "llama3.2",
}

// Select builds the Engine for the configured provider.
func Select(cfg config.Config) (Engine, error) {
	g := cfg.Generation
	model := Model(cfg)
	timeout := cfg.GenerationTimeout()

	switch g.Provider {
	case "", config.ProviderOpenRouter:
		return NewOpenRouterEngine(g.APIKey, g.BaseURL, model, timeout), nil
	case config.ProviderOpenAI:
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:  g.APIKey,
			Model:   model,
			BaseURL: g.BaseURL,
			Timeout: timeout,
		}), nil
	case config.ProviderOllama:
		return NewOllamaEngine(g.BaseURL, model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q (want %s, %s or %s)",
			g.Provider, config.ProviderOpenRouter, config.ProviderOpenAI, config.ProviderOllama)
	}
}

// Model reports the model an engine built by Select will use.
func Model(cfg config.Config) string {
	if cfg.Generation.Model != "" {
		return cfg.Generation.Model
	}
	if cfg.Generation.Provider == "" {
		return DefaultModels[config.ProviderOpenRouter]
	}
	return DefaultModels[cfg.Generation.Provider]
}

var (
	_ Engine   = (*OpenRouterEngine)(nil)
	_ Engine   = (*OpenAIEngine)(nil)
	_ Engine   = (*OllamaEngine)(nil)
	_ Keyless  = (*OllamaEngine)(nil)
	_ Preparer = (*OllamaEngine)(nil)
	_ Checker  = (*OpenRouterEngine)(nil)
	_ Checker  = (*OpenAIEngine)(nil)
	_ Checker  = (*OllamaEngine)(nil)
)
