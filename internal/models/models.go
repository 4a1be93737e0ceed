package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Unavailable is the sentinel stored in indicator fields that could not be computed
const Unavailable = "N/A"

// Token sources
const (
	SourceDex    = "dex"
	SourceManual = "manual"
)

// MACD cross directions
const (
	CrossBullish = "bullish"
	CrossBearish = "bearish"
)

// AI history outcomes
const (
	OutcomePending = "pending"
	OutcomeWin     = "win"
	OutcomeLoss    = "loss"
)

// UserRecord is the per-user document the scanner reads once per cycle
type UserRecord struct {
	ID         string                      `json:"-"`
	Watchlist  Watchlist                   `json:"watchlist"`
	Watchlists map[string]LegacyWatchlist  `json:"watchlists,omitempty"`
	Blacklist  []string                    `json:"blacklist,omitempty"`
	Alerts     map[string]PresetEnablement `json:"alerts,omitempty"`
	AI         AISettings                  `json:"ai"`
	// PriceAlerts is keyed by lowercase token address
	PriceAlerts map[string][]PriceAlert `json:"priceAlerts,omitempty"`
}

// Watchlist is the simplified single-list-per-user structure
type Watchlist struct {
	Tokens []WatchedToken `json:"tokens,omitempty"`
	Dedup  *bool          `json:"dedup,omitempty"` // nil means enabled
}

// DedupEnabled reports whether duplicate addresses are merged on add
func (w Watchlist) DedupEnabled() bool {
	return w.Dedup == nil || *w.Dedup
}

// LegacyWatchlist is a named watchlist carrying its own preset alerts
type LegacyWatchlist struct {
	Tokens []WatchedToken `json:"tokens,omitempty"`
	Alerts []LegacyAlert  `json:"alerts,omitempty"`
}

// LegacyAlert attaches a preset to a legacy watchlist
type LegacyAlert struct {
	Preset string `json:"preset"`
	Active bool   `json:"active"`
}

// WatchedToken is a token a user tracks
type WatchedToken struct {
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Symbol      string `json:"symbol"`
	PairAddress string `json:"pairAddress"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"` // "dex" | "manual"
	AddedAt     int64  `json:"addedAt,omitempty"`
}

// Key returns the normalized address used for comparisons and alert lookup
func (t WatchedToken) Key() string {
	return strings.ToLower(t.Address)
}

// PresetEnablement records whether a preset is switched on for a user's whole watchlist
type PresetEnablement struct {
	Enabled   bool  `json:"enabled"`
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// AISettings holds per-user prediction settings and history
type AISettings struct {
	Enabled bool             `json:"enabled"`
	History []AIHistoryEntry `json:"history,omitempty"`
}

// AIHistoryEntry is appended for every successful model prediction
type AIHistoryEntry struct {
	Indicators IndicatorSnapshot `json:"indicators"`
	Outcome    string            `json:"outcome"` // "pending" | "win" | "loss"
}

// Price alert types
const (
	AlertAbove = "above"
	AlertBelow = "below"
	AlertRange = "range"
)

// PriceAlert is a one-shot threshold or range trigger for a token
type PriceAlert struct {
	ID             string  `json:"id,omitempty"`
	Type           string  `json:"type"` // "above" | "below" | "range"
	Price          float64 `json:"price,omitempty"`
	MinPrice       float64 `json:"minPrice,omitempty"`
	MaxPrice       float64 `json:"maxPrice,omitempty"`
	Triggered      bool    `json:"triggered"`
	TriggeredAt    int64   `json:"triggeredAt,omitempty"` // unix ms
	TriggeredPrice float64 `json:"triggeredPrice,omitempty"`
	CreatedAt      int64   `json:"createdAt,omitempty"`
}

// Candle represents OHLCV data
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorSnapshot holds formatted indicator values or the Unavailable sentinel
type IndicatorSnapshot struct {
	RSI        string `json:"rsi"`
	MACD       string `json:"macd"`
	MACDSignal string `json:"macdSignal"`
	MACDCross  string `json:"macdCross"` // "bullish" | "bearish" | "N/A"
	EMA9       string `json:"ema9"`
	EMA21      string `json:"ema21"`
}

// UnavailableSnapshot returns a snapshot with every value missing
func UnavailableSnapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		RSI:        Unavailable,
		MACD:       Unavailable,
		MACDSignal: Unavailable,
		MACDCross:  Unavailable,
		EMA9:       Unavailable,
		EMA21:      Unavailable,
	}
}

// Available reports whether any indicator was computed
func (s IndicatorSnapshot) Available() bool {
	_, ok := ParseIndicator(s.RSI)
	return ok
}

// RSIValue returns the parsed RSI
func (s IndicatorSnapshot) RSIValue() (float64, bool) { return ParseIndicator(s.RSI) }

// EMA9Value returns the parsed short EMA
func (s IndicatorSnapshot) EMA9Value() (float64, bool) { return ParseIndicator(s.EMA9) }

// EMA21Value returns the parsed long EMA
func (s IndicatorSnapshot) EMA21Value() (float64, bool) { return ParseIndicator(s.EMA21) }

// ParseIndicator parses a formatted indicator value, rejecting the sentinel and NaN
func ParseIndicator(v string) (float64, bool) {
	if v == "" || v == Unavailable {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// PriceChange is the short-term movement context presets evaluate against
type PriceChange struct {
	Price5m  float64 `json:"price5m"` // percent
	Volume   float64 `json:"volume"`  // percent
	Dump     bool    `json:"dump"`
	Recovery bool    `json:"recovery"`
}

// Prediction is a fully populated AI (or fallback) trade plan
type Prediction struct {
	Entry    float64 `json:"entry"`
	SL       float64 `json:"sl"`
	TP1      float64 `json:"tp1"`
	TP2      float64 `json:"tp2"`
	Prob1    float64 `json:"prob1"`
	Prob2    float64 `json:"prob2"`
	Time1    string  `json:"time1"`
	Time2    string  `json:"time2"`
	Duration string  `json:"duration"`
	Accuracy float64 `json:"accuracy"`
}

// FallbackPrediction derives the fixed-ratio plan used whenever inference is unavailable
func FallbackPrediction(price float64) Prediction {
	return Prediction{
		Entry:    price,
		SL:       price * 0.89,
		TP1:      price * 1.20,
		TP2:      price * 1.40,
		Prob1:    70,
		Prob2:    50,
		Time1:    "15-30 min",
		Time2:    "30-60 min",
		Duration: "1-2 hours",
		Accuracy: 60,
	}
}

// PairSnapshot is the current state of a DEX trading pair
type PairSnapshot struct {
	PairAddress   string  `json:"pair_address"`
	ChainID       string  `json:"chain_id"`
	BaseAddress   string  `json:"base_address"`
	Symbol        string  `json:"symbol"`
	PriceUSD      float64 `json:"price_usd"`
	PriceChange5m float64 `json:"price_change_5m"`
	Volume5m      float64 `json:"volume_5m"`
	Volume1h      float64 `json:"volume_1h"`
	Volume24h     float64 `json:"volume_24h"`
	LiquidityUSD  float64 `json:"liquidity_usd"`
	URL           string  `json:"url"`
}

// Notification kinds
const (
	KindPresetAlert = "preset_alert"
	KindPriceAlert  = "price_alert"
	KindSummary     = "summary"
)

// Notification represents a notification to be sent
type Notification struct {
	UserID  string    `json:"user_id"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"` // HTML formatted for Telegram
	Symbol  string    `json:"symbol,omitempty"`
	Preset  string    `json:"preset,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}
