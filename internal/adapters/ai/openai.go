package ai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

const gptSystemPrompt = "You answer multiple-choice questions. Pick the single best option " +
	"and reply with the option text only, no explanation."

// GPTProvider queries OpenAI via the official SDK.
type GPTProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// NewGPTProvider creates a new OpenAI-backed provider.
func NewGPTProvider(apiKey, model string, timeout time.Duration, limiter *Limiter) (*GPTProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}

	return &GPTProvider{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		limiter: limiter,
	}, nil
}

func (p *GPTProvider) Name() resolution.ProviderName { return resolution.ProviderGPT }

// Ask submits the question with the option list embedded in the prompt.
func (p *GPTProvider) Ask(ctx context.Context, question string, options []string) (*Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(gptSystemPrompt),
			openai.UserMessage(questionPrompt(question, options)),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai API call failed")
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrExternal, "openai returned no choices")
	}

	text := resp.Choices[0].Message.Content
	raw, err := json.Marshal(text)
	if err != nil {
		return nil, errors.Wrap(err, "marshal openai answer")
	}

	return &Reply{
		Text: text,
		Raw:  raw,
		Cost: costFor(p.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}
