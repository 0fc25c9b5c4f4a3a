package ai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/shopspring/decimal"

	"oracle/pkg/errors"
)

const formatterSystemPrompt = "Rewrite the question so it is unambiguous and self-contained for " +
	"independent research assistants. Preserve the meaning exactly. Reply with the rewritten question only."

// Formatter normalizes raw question text before it is fanned out to the
// providers. The formatting call is cost-bearing.
type Formatter struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// NewFormatter creates a GPT-backed question formatter.
func NewFormatter(apiKey, model string, timeout time.Duration, limiter *Limiter) (*Formatter, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}

	return &Formatter{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		limiter: limiter,
	}, nil
}

// Format rewrites the question text and returns it with the call cost.
func (f *Formatter) Format(ctx context.Context, question string) (string, decimal.Decimal, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", decimal.Zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: f.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(formatterSystemPrompt),
			openai.UserMessage(question),
		},
	})
	if err != nil {
		return "", decimal.Zero, errors.Wrap(err, "format call failed")
	}

	cost := costFor(f.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", cost, errors.Wrap(errors.ErrExternal, "formatter returned no choices")
	}

	formatted := strings.TrimSpace(resp.Choices[0].Message.Content)
	if formatted == "" {
		return "", cost, errors.Wrap(errors.ErrExternal, "formatter returned empty text")
	}

	return formatted, cost, nil
}
