package ai

import (
	"context"
	"time"

	"oracle/internal/domain/resolution"
)

const grokAPIURL = "https://api.x.ai/v1/chat/completions"

const grokSystemPrompt = "You answer multiple-choice questions. Pick the single best option " +
	"and reply with the option text only, no explanation."

// GrokProvider queries xAI's OpenAI-compatible chat API.
type GrokProvider struct {
	client  *chatCompatClient
	limiter *Limiter
}

// NewGrokProvider creates a new Grok provider.
func NewGrokProvider(apiKey, model string, timeout time.Duration, limiter *Limiter) *GrokProvider {
	return &GrokProvider{
		client: &chatCompatClient{
			endpoint: grokAPIURL,
			apiKey:   apiKey,
			model:    model,
			timeout:  timeout,
		},
		limiter: limiter,
	}
}

func (p *GrokProvider) Name() resolution.ProviderName { return resolution.ProviderGrok }

// Ask submits the question with the option list embedded in the prompt.
func (p *GrokProvider) Ask(ctx context.Context, question string, options []string) (*Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	text, raw, cost, err := p.client.complete(ctx, grokSystemPrompt, questionPrompt(question, options))
	if err != nil {
		return nil, err
	}

	return &Reply{Text: text, Raw: raw, Cost: cost}, nil
}
