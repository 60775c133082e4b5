// Package tokenizer talks to the external token-counting service used for
// batch budgeting. Counts are deterministic for identical (text, model)
// input, which makes them safe to memoize by content.
package tokenizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdf-translator/internal/document"
)

// DefaultTimeout is the HTTP client timeout for tokenizer calls.
const DefaultTimeout = 30 * time.Second

// Counter estimates the token cost of a text span for a given model.
type Counter interface {
	Count(ctx context.Context, text, modelID string) (int, error)
}

// Client is the HTTP implementation of Counter.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a tokenizer client. An empty timeout falls back to
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type countRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type countResponse struct {
	Tokens int    `json:"tokens"`
	Error  string `json:"error,omitempty"`
}

// Count returns the token count of text for modelID. Any failure is a
// TokenizationError: batching cannot proceed safely without counts.
func (c *Client) Count(ctx context.Context, text, modelID string) (int, error) {
	body, err := json.Marshal(countRequest{Text: text, ModelID: modelID})
	if err != nil {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/count_tokens", bytes.NewReader(body))
	if err != nil {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, document.NewError(document.ErrTokenization, "tokenizer",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var cr countResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "failed to parse response", err)
	}
	if cr.Error != "" {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", cr.Error, nil)
	}
	if cr.Tokens < 0 {
		return 0, document.NewError(document.ErrTokenization, "tokenizer", "negative token count", nil)
	}
	return cr.Tokens, nil
}
