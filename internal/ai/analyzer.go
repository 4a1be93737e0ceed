package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dexalert/internal/models"
)

// Completer sends a single prompt to a chat-style model and returns the raw reply
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ErrNoAPIKey is returned when no API key is configured
var ErrNoAPIKey = errors.New("no API key configured")

// ErrAnalysisFailed is returned when the model call or its reply is unusable
var ErrAnalysisFailed = errors.New("analysis failed")

// historyContext is how many recent history entries the prompt carries
const historyContext = 5

var sharedHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	},
}

// NewCompleter creates a model client based on the provider name
func NewCompleter(provider, apiKey, model, baseURL string) (Completer, error) {
	switch provider {
	case "", "puter":
		return NewOpenAI(apiKey, model, baseURL), nil
	case "openai":
		if baseURL == "" {
			baseURL = openAIBaseURL
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAI(apiKey, model, baseURL), nil
	case "claude":
		return NewClaude(apiKey, model), nil
	case "gemini":
		return NewGemini(apiKey, model), nil
	default:
		return nil, errors.New("unknown AI provider: " + provider)
	}
}

// BuildPrompt creates the prediction prompt from the indicator snapshot, price
// and the most recent history entries
func BuildPrompt(ind models.IndicatorSnapshot, price float64, history []models.AIHistoryEntry) string {
	if len(history) > historyContext {
		history = history[len(history)-historyContext:]
	}
	if history == nil {
		history = []models.AIHistoryEntry{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		historyJSON = []byte("[]")
	}

	return "Analyze memecoin with RSI " + ind.RSI +
		", MACD " + ind.MACD + " (" + ind.MACDCross + ")" +
		", EMA9 " + ind.EMA9 + ", EMA21 " + ind.EMA21 +
		", price " + strconv.FormatFloat(price, 'f', -1, 64) +
		". Predict TP/SL. History: " + string(historyJSON) +
		". Output JSON: {entry, sl, tp1, tp2, prob1, prob2, time1, time2, duration}" +
		". Respond ONLY with valid JSON, no additional text."
}

// parsePrediction parses the model reply into a prediction. entry, sl, tp1,
// tp2, prob1, prob2 and time1 are required; time2 and duration fall back to
// the default plan's values.
func parsePrediction(content string) (models.Prediction, error) {
	content = strings.TrimSpace(content)

	// Handle markdown code blocks
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var response struct {
		Entry    *float64 `json:"entry"`
		SL       *float64 `json:"sl"`
		TP1      *float64 `json:"tp1"`
		TP2      *float64 `json:"tp2"`
		Prob1    *float64 `json:"prob1"`
		Prob2    *float64 `json:"prob2"`
		Time1    string   `json:"time1"`
		Time2    string   `json:"time2"`
		Duration string   `json:"duration"`
	}

	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return models.Prediction{}, fmt.Errorf("%w: failed to parse response: %v", ErrAnalysisFailed, err)
	}

	switch {
	case response.Entry == nil || *response.Entry <= 0:
		return models.Prediction{}, fmt.Errorf("%w: missing or non-positive entry", ErrAnalysisFailed)
	case response.TP1 == nil || *response.TP1 <= 0:
		return models.Prediction{}, fmt.Errorf("%w: missing or non-positive tp1", ErrAnalysisFailed)
	case response.SL == nil || response.TP2 == nil || response.Prob1 == nil || response.Prob2 == nil:
		return models.Prediction{}, fmt.Errorf("%w: incomplete prediction", ErrAnalysisFailed)
	case strings.TrimSpace(response.Time1) == "":
		return models.Prediction{}, fmt.Errorf("%w: missing time1", ErrAnalysisFailed)
	}

	defaults := models.FallbackPrediction(*response.Entry)
	pred := models.Prediction{
		Entry:    *response.Entry,
		SL:       *response.SL,
		TP1:      *response.TP1,
		TP2:      *response.TP2,
		Prob1:    *response.Prob1,
		Prob2:    *response.Prob2,
		Time1:    response.Time1,
		Time2:    response.Time2,
		Duration: response.Duration,
	}
	if pred.Time2 == "" {
		pred.Time2 = defaults.Time2
	}
	if pred.Duration == "" {
		pred.Duration = defaults.Duration
	}
	return pred, nil
}
