package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

const exaAnswerURL = "https://api.exa.ai/answer"

// ExaProvider queries the Exa answer API. Exa receives only the question,
// never the option list.
type ExaProvider struct {
	apiKey  string
	timeout time.Duration
	limiter *Limiter
}

// NewExaProvider creates a new Exa provider.
func NewExaProvider(apiKey string, timeout time.Duration, limiter *Limiter) *ExaProvider {
	return &ExaProvider{apiKey: apiKey, timeout: timeout, limiter: limiter}
}

func (p *ExaProvider) Name() resolution.ProviderName { return resolution.ProviderExa }

type exaRequest struct {
	Query string `json:"query"`
	Text  bool   `json:"text"`
}

type exaResponse struct {
	// Answer arrives either as a plain string or as a nested object with an
	// "answer" field. The union is resolved here, once.
	Answer      json.RawMessage `json:"answer"`
	CostDollars struct {
		Total float64 `json:"total"`
	} `json:"costDollars"`
}

// Ask submits the question to Exa and flattens the payload to text.
func (p *ExaProvider) Ask(ctx context.Context, question string, _ []string) (*Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(exaRequest{Query: question, Text: true})
	if err != nil {
		return nil, errors.Wrap(err, "marshal exa request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, exaAnswerURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)

	client := &http.Client{Timeout: p.timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send exa request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read exa response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrExternal, "exa API error (%d): %s",
			resp.StatusCode, string(respBody))
	}

	var parsed exaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "unmarshal exa response")
	}

	return &Reply{
		Text: flattenAnswer(parsed.Answer),
		Raw:  parsed.Answer,
		Cost: decimal.NewFromFloat(parsed.CostDollars.Total),
	}, nil
}

// flattenAnswer resolves the string-or-object answer union to plain text.
func flattenAnswer(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var nested struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Answer != "" {
		return nested.Answer
	}
	return string(raw)
}
