package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/shopspring/decimal"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

const extractorSystemPrompt = "You map a free-form answer onto a fixed option list. " +
	"Reply with the zero-based index of the option the answer refers to, or -1 if no option matches. " +
	"Reply with the integer only."

// Extractor normalizes free-form provider answers into option indices using
// a small extraction model. The extraction call itself is cost-bearing; the
// cost is returned even when no option matches.
type Extractor struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// NewExtractor creates a GPT-backed answer extractor.
func NewExtractor(apiKey, model string, timeout time.Duration, limiter *Limiter) (*Extractor, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}

	return &Extractor{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		limiter: limiter,
	}, nil
}

// Extract maps rawAnswer onto the option list. The returned index is always
// in [-1, len(options)-1]. An empty answer maps to -1 without an API call.
func (e *Extractor) Extract(ctx context.Context, options []string, rawAnswer string) (int, decimal.Decimal, error) {
	if strings.TrimSpace(rawAnswer) == "" {
		return resolution.NoMatchIndex, decimal.Zero, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return resolution.NoMatchIndex, decimal.Zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString("Options:\n")
	for i, opt := range options {
		fmt.Fprintf(&prompt, "%d. %s\n", i, opt)
	}
	prompt.WriteString("\nAnswer:\n")
	prompt.WriteString(rawAnswer)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractorSystemPrompt),
			openai.UserMessage(prompt.String()),
		},
	})
	if err != nil {
		return resolution.NoMatchIndex, decimal.Zero, errors.Wrap(err, "extraction call failed")
	}

	cost := costFor(e.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return resolution.NoMatchIndex, cost, nil
	}

	return parseIndex(resp.Choices[0].Message.Content, len(options)), cost, nil
}

var indexPattern = regexp.MustCompile(`-?\d+`)

// parseIndex pulls the first integer out of the model reply and clamps it to
// the valid range. Anything unparsable or out of range maps to -1.
func parseIndex(reply string, optionCount int) int {
	match := indexPattern.FindString(reply)
	if match == "" {
		return resolution.NoMatchIndex
	}
	idx, err := strconv.Atoi(match)
	if err != nil || idx < 0 || idx >= optionCount {
		return resolution.NoMatchIndex
	}
	return idx
}
