package ai

import (
	"context"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

// Registry holds the configured answer providers keyed by name.
type Registry struct {
	providers map[resolution.ProviderName]Provider
}

// NewRegistry creates a registry from a provider list.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[resolution.ProviderName]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name.
func (r *Registry) Get(name resolution.ProviderName) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "provider %s not registered", name)
	}
	return p, nil
}

// All returns the providers in canonical order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, name := range resolution.Providers() {
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// BuildRegistry wires all five providers, the extractor and the formatter
// from configuration. Resolution requires the full provider set, so every
// key is mandatory.
func BuildRegistry(ctx context.Context, cfg config.AIConfig) (*Registry, *Extractor, *Formatter, error) {
	limiterFor := func(name resolution.ProviderName) *Limiter {
		return NewLimiter(name, cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}

	exa := NewExaProvider(cfg.ExaKey, cfg.ProviderTimeout, limiterFor(resolution.ProviderExa))
	perplexity := NewPerplexityProvider(cfg.PerplexityKey, cfg.PerplexityModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderPerplexity))
	grok := NewGrokProvider(cfg.GrokKey, cfg.GrokModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderGrok))

	gpt, err := NewGPTProvider(cfg.OpenAIKey, cfg.GPTModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderGPT))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "build gpt provider")
	}

	gemini, err := NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderGemini))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "build gemini provider")
	}

	// The extractor and formatter share the OpenAI budget with the gpt provider.
	extractor, err := NewExtractor(cfg.OpenAIKey, cfg.ExtractionModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderGPT))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "build extractor")
	}

	formatter, err := NewFormatter(cfg.OpenAIKey, cfg.ExtractionModel, cfg.ProviderTimeout,
		limiterFor(resolution.ProviderGPT))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "build formatter")
	}

	return NewRegistry(exa, perplexity, gpt, grok, gemini), extractor, formatter, nil
}
