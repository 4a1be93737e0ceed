package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"dexalert/internal/models"
)

// Candle synthesis parameters
const (
	CandleCount    = 100
	CandleInterval = 5 * time.Minute
)

// SynthesizeCandles fabricates a random-walk OHLCV series anchored at price.
// Candles are oldest first and the last one is stamped at now. The series has no
// relationship to real trading history.
func SynthesizeCandles(price float64, now time.Time, rng *rand.Rand) []models.Candle {
	candles := make([]models.Candle, 0, CandleCount)
	current := price
	for i := CandleCount - 1; i >= 0; i-- {
		open := current
		next := open * (0.95 + rng.Float64()*0.1)
		candles = append(candles, models.Candle{
			Timestamp: now.Add(-time.Duration(i) * CandleInterval),
			Open:      open,
			High:      math.Max(open, next) * 1.01,
			Low:       math.Min(open, next) * 0.99,
			Close:     next,
			Volume:    rng.Float64() * 100000,
		})
		current = next
	}
	return candles
}

// CandleSource produces synthetic candles for a watched token from its live price
type CandleSource struct {
	provider Provider
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCandleSource creates a candle source backed by a market provider
func NewCandleSource(provider Provider) *CandleSource {
	return &CandleSource{
		provider: provider,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch looks up the token's pair and synthesizes candles around its current price.
// ErrNoData means the token should be skipped this cycle.
func (s *CandleSource) Fetch(ctx context.Context, token models.WatchedToken) ([]models.Candle, *models.PairSnapshot, error) {
	pair, err := s.provider.GetPair(ctx, token.Chain, token.PairAddress)
	if err != nil {
		return nil, nil, err
	}
	if pair.PriceUSD <= 0 {
		return nil, nil, ErrNoData
	}

	s.mu.Lock()
	candles := SynthesizeCandles(pair.PriceUSD, s.now(), s.rng)
	s.mu.Unlock()

	return candles, pair, nil
}
