package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/db"
	"dexalert/internal/models"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
	last  string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.last = prompt
	return s.reply, s.err
}

func (s *stubCompleter) Name() string { return "stub" }

const validReply = "```json\n{\"entry\":1.0,\"sl\":0.9,\"tp1\":1.3,\"tp2\":1.6,\"prob1\":85,\"prob2\":55,\"time1\":\"15-30 min\",\"time2\":\"1h\",\"duration\":\"2h\",\"accuracy\":99}\n```"

func TestParsePrediction(t *testing.T) {
	pred, err := parsePrediction(validReply)
	require.NoError(t, err)
	assert.Equal(t, 1.3, pred.TP1)
	assert.Equal(t, 85.0, pred.Prob1)
	assert.Equal(t, "15-30 min", pred.Time1)
	assert.Equal(t, 0.0, pred.Accuracy, "model accuracy is ignored")

	pred, err = parsePrediction(`{"entry":2,"sl":1.8,"tp1":2.5,"tp2":3,"prob1":70,"prob2":40,"time1":"30 min"}`)
	require.NoError(t, err)
	assert.Equal(t, "30-60 min", pred.Time2)
	assert.Equal(t, "1-2 hours", pred.Duration)

	bad := []string{
		"not json at all",
		`{"entry":0,"sl":1,"tp1":2,"tp2":3,"prob1":1,"prob2":1,"time1":"x"}`,
		`{"entry":1,"sl":1,"tp2":3,"prob1":1,"prob2":1,"time1":"x"}`,
		`{"entry":1,"sl":1,"tp1":2,"tp2":3,"prob1":1,"prob2":1,"time1":""}`,
		`{"entry":1,"tp1":2,"tp2":3,"prob1":1,"prob2":1,"time1":"x"}`,
	}
	for _, b := range bad {
		_, err := parsePrediction(b)
		assert.ErrorIs(t, err, ErrAnalysisFailed, b)
	}
}

func TestBuildPrompt_LastFiveHistoryEntries(t *testing.T) {
	var history []models.AIHistoryEntry
	for i := 0; i < 7; i++ {
		outcome := models.OutcomePending
		if i < 2 {
			outcome = models.OutcomeLoss
		}
		history = append(history, models.AIHistoryEntry{Outcome: outcome})
	}

	ind := models.UnavailableSnapshot()
	ind.RSI = "25.0"
	prompt := BuildPrompt(ind, 0.0001, history)

	assert.Contains(t, prompt, "RSI 25.0")
	assert.Contains(t, prompt, "price 0.0001")
	assert.NotContains(t, prompt, models.OutcomeLoss)
	assert.Equal(t, 5, strings.Count(prompt, `"outcome":"pending"`))

	assert.Contains(t, BuildPrompt(ind, 1, nil), "History: []")
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 50.0, Accuracy(nil))
	assert.Equal(t, 0.0, Accuracy([]models.AIHistoryEntry{{Outcome: models.OutcomePending}}))
	assert.Equal(t, 50.0, Accuracy([]models.AIHistoryEntry{{Outcome: models.OutcomeWin}, {Outcome: models.OutcomeLoss}}))
}

func TestPredictor_SuccessRecordsPendingHistory(t *testing.T) {
	ctx := context.Background()
	users := db.NewUsers(db.NewMemory())
	completer := &stubCompleter{reply: validReply}
	p := NewPredictor(completer, users, nil)

	pred := p.Predict(ctx, "1", models.UnavailableSnapshot(), 1.0)
	assert.Equal(t, 50.0, pred.Accuracy)
	assert.Equal(t, 85.0, pred.Prob1)

	history, err := users.AIHistory(ctx, "1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.OutcomePending, history[0].Outcome)

	pred = p.Predict(ctx, "1", models.UnavailableSnapshot(), 1.0)
	assert.Equal(t, 0.0, pred.Accuracy, "one pending entry, no wins")
	assert.Contains(t, completer.last, `"outcome":"pending"`)
}

func TestPredictor_FallbackOnFailure(t *testing.T) {
	ctx := context.Background()
	users := db.NewUsers(db.NewMemory())

	for name, c := range map[string]*stubCompleter{
		"transport": {err: errors.New("connection refused")},
		"garbage":   {reply: "I think it goes up"},
	} {
		t.Run(name, func(t *testing.T) {
			p := NewPredictor(c, users, nil)
			pred := p.Predict(ctx, "1", models.UnavailableSnapshot(), 0.5)
			assert.Equal(t, models.FallbackPrediction(0.5), pred)
		})
	}

	history, err := users.AIHistory(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Equal(t, models.FallbackPrediction(2), NewPredictor(nil, users, nil).Predict(ctx, "1", models.UnavailableSnapshot(), 2))
}

func TestPredictor_BreakerStopsCallingFailingModel(t *testing.T) {
	c := &stubCompleter{err: errors.New("boom")}
	p := NewPredictor(c, db.NewUsers(db.NewMemory()), nil)
	for i := 0; i < 6; i++ {
		p.Predict(context.Background(), "1", models.UnavailableSnapshot(), 1)
	}
	assert.Equal(t, 3, c.calls)
}

func TestFallbackValues(t *testing.T) {
	fb := models.FallbackPrediction(1.0)
	assert.InDelta(t, 0.89, fb.SL, 1e-12)
	assert.InDelta(t, 1.2, fb.TP1, 1e-12)
	assert.InDelta(t, 1.4, fb.TP2, 1e-12)
	assert.Equal(t, 70.0, fb.Prob1)
	assert.Equal(t, 50.0, fb.Prob2)
	assert.Equal(t, "15-30 min", fb.Time1)
	assert.Equal(t, "30-60 min", fb.Time2)
	assert.Equal(t, "1-2 hours", fb.Duration)
	assert.Equal(t, 60.0, fb.Accuracy)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, puterModel, body.Model)
		assert.Equal(t, 0.7, body.Temperature)
		assert.Equal(t, 300, body.MaxTokens)
		assert.Equal(t, "hello", body.Messages[0].Content)
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Write([]byte(`{"choices":[{"message":{"content":"{\"entry\":1}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("", "", srv.URL)
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"entry":1}`, out)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("key", "m", srv.URL).Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "slow down")
}

func TestClaude_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClaude("key", "")
	c.baseURL = srv.URL
	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = NewClaude("", "").Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/gemini-1.5-flash:generateContent"))
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("key", "")
	g.baseURL = srv.URL
	out, err := g.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter("", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "puter", c.Name())

	c, err = NewCompleter("openai", "", "", "")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewCompleter("llama", "", "", "")
	assert.Error(t, err)
}
