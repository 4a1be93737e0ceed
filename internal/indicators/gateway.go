package indicators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"dexalert/internal/metrics"
	"dexalert/internal/models"
)

const taapiBaseURL = "https://api.taapi.io"

// MinCandles is the shortest series worth sending for computation
const MinCandles = 50

// ErrAPIError is returned when the indicator service answers with an error
var ErrAPIError = errors.New("indicator API error")

var sharedHTTPClient = &http.Client{
	Timeout: 15 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	},
}

// Limiter gates outbound indicator calls
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Gateway computes RSI(14), MACD(12,26,9), EMA(9) and EMA(21) through a
// taapi.io compatible backfill endpoint
type Gateway struct {
	secret  string
	baseURL string
	client  *http.Client
	limiter Limiter
	metrics *metrics.Registry
}

// NewGateway creates an indicator gateway
func NewGateway(secret, baseURL string, limiter Limiter, m *metrics.Registry) *Gateway {
	if baseURL == "" {
		baseURL = taapiBaseURL
	}
	return &Gateway{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  sharedHTTPClient,
		limiter: limiter,
		metrics: m,
	}
}

type backfillCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type backfillIndicator struct {
	Indicator string         `json:"indicator"`
	Params    map[string]int `json:"params"`
}

type backfillRequest struct {
	Secret   string              `json:"secret"`
	Candles  []backfillCandle    `json:"candles"`
	Backfill []backfillIndicator `json:"backfill"`
}

type valueResult struct {
	Value *float64 `json:"value"`
}

type backfillResponse struct {
	RSI  *valueResult `json:"rsi"`
	MACD *struct {
		ValueMACD   *float64 `json:"valueMACD"`
		ValueSignal *float64 `json:"valueSignal"`
	} `json:"macd"`
	EMA []valueResult `json:"ema"`
}

var backfillSet = []backfillIndicator{
	{Indicator: "rsi", Params: map[string]int{"period": 14}},
	{Indicator: "macd", Params: map[string]int{"fastPeriod": 12, "slowPeriod": 26, "signalPeriod": 9}},
	{Indicator: "ema", Params: map[string]int{"period": 9}},
	{Indicator: "ema", Params: map[string]int{"period": 21}},
}

// Compute returns the indicator snapshot for candles. Short series and every
// failure produce the unavailable snapshot; Compute never returns an error.
func (g *Gateway) Compute(ctx context.Context, candles []models.Candle) models.IndicatorSnapshot {
	if len(candles) < MinCandles {
		g.metrics.RecordIndicatorCall("skipped")
		return models.UnavailableSnapshot()
	}

	if err := g.limiter.Acquire(ctx); err != nil {
		log.Warn().Err(err).Str("component", "indicators").Msg("indicator budget wait aborted")
		g.metrics.RecordIndicatorCall("error")
		return models.UnavailableSnapshot()
	}

	resp, err := g.backfill(ctx, candles)
	if err != nil {
		log.Warn().Err(err).Str("component", "indicators").Int("candles", len(candles)).Msg("indicator backfill failed")
		g.metrics.RecordIndicatorCall("error")
		return models.UnavailableSnapshot()
	}

	g.metrics.RecordIndicatorCall("ok")
	return resp.snapshot()
}

func (g *Gateway) backfill(ctx context.Context, candles []models.Candle) (*backfillResponse, error) {
	body := backfillRequest{
		Secret:   g.secret,
		Candles:  make([]backfillCandle, 0, len(candles)),
		Backfill: backfillSet,
	}
	for _, c := range candles {
		body.Candles = append(body.Candles, backfillCandle{
			Time:   c.Timestamp.Unix(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/backfill", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var result backfillResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIError, err)
	}
	return &result, nil
}

func (r *backfillResponse) snapshot() models.IndicatorSnapshot {
	snap := models.UnavailableSnapshot()

	if r.RSI != nil && r.RSI.Value != nil {
		snap.RSI = fmt.Sprintf("%.1f", *r.RSI.Value)
	}
	if r.MACD != nil {
		if r.MACD.ValueMACD != nil {
			snap.MACD = fmt.Sprintf("%.6f", *r.MACD.ValueMACD)
		}
		if r.MACD.ValueSignal != nil {
			snap.MACDSignal = fmt.Sprintf("%.6f", *r.MACD.ValueSignal)
		}
		if r.MACD.ValueMACD != nil && r.MACD.ValueSignal != nil {
			snap.MACDCross = models.CrossBearish
			if *r.MACD.ValueMACD > *r.MACD.ValueSignal {
				snap.MACDCross = models.CrossBullish
			}
		}
	}
	if len(r.EMA) > 0 && r.EMA[0].Value != nil {
		snap.EMA9 = fmt.Sprintf("%.6f", *r.EMA[0].Value)
	}
	if len(r.EMA) > 1 && r.EMA[1].Value != nil {
		snap.EMA21 = fmt.Sprintf("%.6f", *r.EMA[1].Value)
	}
	return snap
}
