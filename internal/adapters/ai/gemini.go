package ai

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/genai"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

const geminiSystemPrompt = "Answer the multiple-choice question with the single best option. " +
	"Reply with the option text only."

// GeminiProvider queries Google Gemini via the official genai SDK.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, timeout time.Duration, limiter *Limiter) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return &GeminiProvider{client: client, model: model, timeout: timeout, limiter: limiter}, nil
}

func (p *GeminiProvider) Name() resolution.ProviderName { return resolution.ProviderGemini }

// Ask submits the question with the option list embedded in the prompt.
func (p *GeminiProvider) Ask(ctx context.Context, question string, options []string) (*Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(geminiSystemPrompt+"\n\n"+questionPrompt(question, options)), nil)
	if err != nil {
		return nil, errors.Wrap(err, "gemini API call failed")
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.Wrap(errors.ErrExternal, "gemini returned no content")
	}

	raw, err := json.Marshal(text)
	if err != nil {
		return nil, errors.Wrap(err, "marshal gemini answer")
	}

	var promptTokens, completionTokens int64
	if resp.UsageMetadata != nil {
		promptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &Reply{
		Text: text,
		Raw:  raw,
		Cost: costFor(p.model, promptTokens, completionTokens),
	}, nil
}
