package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const claudeBaseURL = "https://api.anthropic.com/v1/messages"

// Claude implements Completer for the Anthropic messages API
type Claude struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClaude creates a new Claude client
func NewClaude(apiKey string, model string) *Claude {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Claude{
		apiKey:  apiKey,
		model:   model,
		baseURL: claudeBaseURL,
		client:  sharedHTTPClient,
	}
}

// Name returns the provider name
func (c *Claude) Name() string {
	return "claude"
}

// Complete sends the prompt as a single user message
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	requestBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  300,
		"temperature": 0.7,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("%w: %s", ErrAnalysisFailed, errResp.Error.Message)
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	if len(result.Content) == 0 {
		return "", ErrAnalysisFailed
	}

	return result.Content[0].Text, nil
}
