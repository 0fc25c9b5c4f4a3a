package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"oracle/pkg/errors"
)

// chatCompatClient talks to an OpenAI-compatible chat completions endpoint.
// Perplexity and Grok both speak this wire format.
type chatCompatClient struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatRequest struct {
	Model    string          `json:"model"`
	Messages []compatMessage `json:"messages"`
}

type compatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// complete sends one chat completion and returns the answer text, the raw
// response body and the computed call cost.
func (c *chatCompatClient) complete(ctx context.Context, system, user string) (string, json.RawMessage, decimal.Decimal, error) {
	req := compatRequest{
		Model: c.model,
		Messages: []compatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, decimal.Zero, errors.Wrap(err, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, decimal.Zero, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := &http.Client{Timeout: c.timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", nil, decimal.Zero, errors.Wrap(err, "send chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, decimal.Zero, errors.Wrap(err, "read chat response")
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return "", nil, decimal.Zero, errors.Wrapf(errors.ErrExternal, "chat API error (%d): %s - %s",
				resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return "", nil, decimal.Zero, errors.Wrapf(errors.ErrExternal, "chat API error (%d): %s",
			resp.StatusCode, string(respBody))
	}

	var parsed compatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", nil, decimal.Zero, errors.Wrap(err, "unmarshal chat response")
	}

	if len(parsed.Choices) == 0 {
		return "", nil, decimal.Zero, errors.Wrapf(errors.ErrExternal, "chat API returned no choices")
	}

	cost := costFor(c.model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	return parsed.Choices[0].Message.Content, respBody, cost, nil
}
