package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"dexalert/internal/metrics"
	"dexalert/internal/models"
)

// HistoryStore keeps each user's prediction history
type HistoryStore interface {
	AIHistory(ctx context.Context, userID string) ([]models.AIHistoryEntry, error)
	AppendAIHistory(ctx context.Context, userID string, entry models.AIHistoryEntry) error
}

// Predictor turns indicator snapshots into trade plans. It never fails: any
// problem with the model yields the fallback plan.
type Predictor struct {
	completer Completer
	history   HistoryStore
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.Registry
}

// NewPredictor creates a predictor. A nil completer always serves the fallback.
func NewPredictor(completer Completer, history HistoryStore, m *metrics.Registry) *Predictor {
	name := "ai"
	if completer != nil {
		name = "ai-" + completer.Name()
	}
	return &Predictor{
		completer: completer,
		history:   history,
		metrics:   m,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     name,
			Interval: 5 * time.Minute,
			Timeout:  2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Predict returns a fully populated prediction for the token at price.
// Successful model calls append a pending history entry; outcomes are never resolved here.
func (p *Predictor) Predict(ctx context.Context, userID string, ind models.IndicatorSnapshot, price float64) models.Prediction {
	logger := log.With().Str("component", "ai").Str("user", userID).Logger()

	if p.completer == nil {
		p.metrics.RecordPrediction("fallback")
		return models.FallbackPrediction(price)
	}

	history, err := p.history.AIHistory(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load prediction history")
		p.metrics.RecordPrediction("fallback")
		return models.FallbackPrediction(price)
	}

	prompt := BuildPrompt(ind, price, history)
	out, err := p.breaker.Execute(func() (interface{}, error) {
		content, err := p.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return parsePrediction(content)
	})
	if err != nil {
		logger.Warn().Err(err).Str("provider", p.completer.Name()).Msg("prediction failed, using fallback")
		p.metrics.RecordPrediction("fallback")
		return models.FallbackPrediction(price)
	}

	pred := out.(models.Prediction)
	pred.Accuracy = Accuracy(history)

	if err := p.history.AppendAIHistory(ctx, userID, models.AIHistoryEntry{
		Indicators: ind,
		Outcome:    models.OutcomePending,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record prediction history")
	}

	p.metrics.RecordPrediction("model")
	return pred
}

// Accuracy is the share of history entries marked as wins, in percent. An empty
// history scores 50.
func Accuracy(history []models.AIHistoryEntry) float64 {
	if len(history) == 0 {
		return 50
	}
	wins := 0
	for _, h := range history {
		if h.Outcome == models.OutcomeWin {
			wins++
		}
	}
	return float64(wins) / float64(len(history)) * 100
}
