package ai

import (
	"context"
	"time"

	"oracle/internal/domain/resolution"
)

const perplexityAPIURL = "https://api.perplexity.ai/chat/completions"

const perplexitySystemPrompt = "You are a research assistant. Answer the multiple-choice question " +
	"with the single option that is best supported by current information. Reply with the option text only."

// PerplexityProvider queries Perplexity's OpenAI-compatible chat API.
type PerplexityProvider struct {
	client  *chatCompatClient
	limiter *Limiter
}

// NewPerplexityProvider creates a new Perplexity provider.
func NewPerplexityProvider(apiKey, model string, timeout time.Duration, limiter *Limiter) *PerplexityProvider {
	return &PerplexityProvider{
		client: &chatCompatClient{
			endpoint: perplexityAPIURL,
			apiKey:   apiKey,
			model:    model,
			timeout:  timeout,
		},
		limiter: limiter,
	}
}

func (p *PerplexityProvider) Name() resolution.ProviderName { return resolution.ProviderPerplexity }

// Ask submits the question with the option list embedded in the prompt.
func (p *PerplexityProvider) Ask(ctx context.Context, question string, options []string) (*Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	text, raw, cost, err := p.client.complete(ctx, perplexitySystemPrompt, questionPrompt(question, options))
	if err != nil {
		return nil, err
	}

	return &Reply{Text: text, Raw: raw, Cost: cost}, nil
}
