package indicators

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/metrics"
	"dexalert/internal/models"
)

// fakeClock advances only when the limiter sleeps
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	sleeps int
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	c.sleeps++
	return nil
}

func (c *fakeClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func TestWindow_NeverExceedsBudgetPerWindow(t *testing.T) {
	clock := &fakeClock{}
	w := NewWindow(90, time.Minute, nil)
	w.sleep = clock.sleep

	var stamps []time.Duration
	for i := 0; i < 400; i++ {
		require.NoError(t, w.Acquire(context.Background()))
		stamps = append(stamps, clock.elapsed())
	}

	assert.Equal(t, 4, clock.sleeps)
	for i := range stamps {
		inWindow := 0
		for j := i; j < len(stamps) && stamps[j]-stamps[i] < time.Minute; j++ {
			inWindow++
		}
		assert.LessOrEqual(t, inWindow, 90)
	}
}

func TestWindow_ConcurrentCallers(t *testing.T) {
	clock := &fakeClock{}
	w := NewWindow(10, time.Minute, metrics.New())
	w.sleep = clock.sleep

	var wg sync.WaitGroup
	for i := 0; i < 35; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Acquire(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, clock.sleeps)
	assert.Equal(t, 5, w.Used())
}

func TestWindow_CancelledWait(t *testing.T) {
	w := NewWindow(1, time.Hour, nil)
	require.NoError(t, w.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Acquire(ctx), context.Canceled)
}

func candles(n int) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Unix(1700000000, 0)
	for i := range out {
		out[i] = models.Candle{Timestamp: start.Add(time.Duration(i) * 5 * time.Minute), Open: 1, High: 1.01, Low: 0.99, Close: 1, Volume: 10}
	}
	return out
}

type countingLimiter struct{ calls int32 }

func (l *countingLimiter) Acquire(context.Context) error {
	atomic.AddInt32(&l.calls, 1)
	return nil
}

func TestGateway_ShortSeriesSkipsExternalCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	g := NewGateway("secret", srv.URL, limiter, nil)

	snap := g.Compute(context.Background(), candles(49))
	assert.Equal(t, models.UnavailableSnapshot(), snap)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&limiter.calls))
}

func TestGateway_Compute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/backfill", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req backfillRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "secret", req.Secret)
		assert.Len(t, req.Candles, 60)
		assert.Equal(t, int64(1700000000), req.Candles[0].Time)
		require.Len(t, req.Backfill, 4)
		assert.Equal(t, 14, req.Backfill[0].Params["period"])
		assert.Equal(t, 26, req.Backfill[1].Params["slowPeriod"])
		assert.Equal(t, 21, req.Backfill[3].Params["period"])

		w.Write([]byte(`{"rsi":{"value":28.456},"macd":{"valueMACD":0.00012,"valueSignal":0.0001},"ema":[{"value":1.23456789},{"value":1.2}]}`))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	g := NewGateway("secret", srv.URL, limiter, metrics.New())
	snap := g.Compute(context.Background(), candles(60))

	assert.Equal(t, models.IndicatorSnapshot{
		RSI:        "28.5",
		MACD:       "0.000120",
		MACDSignal: "0.000100",
		MACDCross:  models.CrossBullish,
		EMA9:       "1.234568",
		EMA21:      "1.200000",
	}, snap)
	assert.Equal(t, int32(1), atomic.LoadInt32(&limiter.calls))
}

func TestGateway_FailuresYieldUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "status", handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{name: "garbage", handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := NewGateway("secret", srv.URL, &countingLimiter{}, nil)
			assert.Equal(t, models.UnavailableSnapshot(), g.Compute(context.Background(), candles(100)))
		})
	}
}

func TestBackfillResponse_PartialValues(t *testing.T) {
	var resp backfillResponse
	require.NoError(t, json.Unmarshal([]byte(`{"rsi":{"value":71},"macd":{"valueMACD":-1}}`), &resp))

	snap := resp.snapshot()
	assert.Equal(t, "71.0", snap.RSI)
	assert.Equal(t, "-1.000000", snap.MACD)
	assert.Equal(t, models.Unavailable, snap.MACDSignal)
	assert.Equal(t, models.Unavailable, snap.MACDCross)
	assert.Equal(t, models.Unavailable, snap.EMA9)
}
