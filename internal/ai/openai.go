package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	openAIBaseURL = "https://api.openai.com/v1/chat/completions"
	puterBaseURL  = "https://api.puter.com/v2/ai/chat"
	puterModel    = "deepseek-v3.1"
)

// OpenAI implements Completer for any OpenAI-compatible chat completions endpoint.
// The default target is the keyless Puter gateway.
type OpenAI struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenAI creates a chat completions client
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = puterBaseURL
	}
	if model == "" {
		model = puterModel
	}
	return &OpenAI{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: 0.7,
		maxTokens:   300,
		client:      sharedHTTPClient,
	}
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	if o.baseURL == puterBaseURL {
		return "puter"
	}
	return "openai"
}

// Complete sends the prompt as a single user message
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" && o.baseURL == openAIBaseURL {
		return "", ErrNoAPIKey
	}

	requestBody := map[string]interface{}{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": o.temperature,
		"max_tokens":  o.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
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
		return "", fmt.Errorf("%w: status %d: %s", ErrAnalysisFailed, resp.StatusCode, errResp.Error.Message)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	if len(result.Choices) == 0 {
		return "", ErrAnalysisFailed
	}

	return result.Choices[0].Message.Content, nil
}
