// Package presets is the closed catalog of alert conditions a user can switch on.
// Every condition is a pure predicate over the indicator snapshot, the recent
// price change and an optional AI prediction.
package presets

import (
	"strings"

	"dexalert/internal/models"
)

// Key identifies a preset
type Key string

const (
	OversoldHunter   Key = "OVERSOLD_HUNTER"
	PumpDetector     Key = "PUMP_DETECTOR"
	DumpRecovery     Key = "DUMP_RECOVERY"
	OverboughtExit   Key = "OVERBOUGHT_EXIT"
	EMAGoldenCross   Key = "EMA_GOLDEN_CROSS"
	MACDBullish      Key = "MACD_BULLISH"
	VolumeExplosion  Key = "VOLUME_EXPLOSION"
	AIHighConfidence Key = "AI_HIGH_CONFIDENCE"
	AIQuickFlip      Key = "AI_QUICK_FLIP"
)

// Condition evaluates a preset. pred is nil when AI predictions are off.
type Condition func(ind models.IndicatorSnapshot, change models.PriceChange, pred *models.Prediction) bool

// Preset is a named alert condition
type Preset struct {
	Key         Key
	Name        string
	Description string
	Condition   Condition
}

// Evaluate runs the preset's condition
func (p Preset) Evaluate(ind models.IndicatorSnapshot, change models.PriceChange, pred *models.Prediction) bool {
	return p.Condition(ind, change, pred)
}

var catalog = []Preset{
	{
		Key:         OversoldHunter,
		Name:        "🟢 OVERSOLD HUNTER",
		Description: "RSI ≤30 + Volume +300%",
		Condition: func(ind models.IndicatorSnapshot, change models.PriceChange, _ *models.Prediction) bool {
			rsi, ok := ind.RSIValue()
			return ok && rsi <= 30 && change.Volume >= 300
		},
	},
	{
		Key:         PumpDetector,
		Name:        "🚀 PUMP DETECTOR",
		Description: "Price +15% in 5m + RSI <50",
		Condition: func(ind models.IndicatorSnapshot, change models.PriceChange, _ *models.Prediction) bool {
			rsi, ok := ind.RSIValue()
			return ok && change.Price5m >= 15 && rsi < 50
		},
	},
	{
		Key:         DumpRecovery,
		Name:        "📉📈 DUMP & RECOVERY",
		Description: "Price -20% then +10% in 15m",
		Condition: func(_ models.IndicatorSnapshot, change models.PriceChange, _ *models.Prediction) bool {
			return change.Dump && change.Recovery
		},
	},
	{
		Key:         OverboughtExit,
		Name:        "🔴 OVERBOUGHT EXIT",
		Description: "RSI ≥70 + Volume spike (sell)",
		Condition: func(ind models.IndicatorSnapshot, change models.PriceChange, _ *models.Prediction) bool {
			rsi, ok := ind.RSIValue()
			return ok && rsi >= 70 && change.Volume >= 200
		},
	},
	{
		Key:         EMAGoldenCross,
		Name:        "✨ EMA GOLDEN CROSS",
		Description: "EMA 9 > EMA 21",
		Condition: func(ind models.IndicatorSnapshot, _ models.PriceChange, _ *models.Prediction) bool {
			fast, ok1 := ind.EMA9Value()
			slow, ok2 := ind.EMA21Value()
			return ok1 && ok2 && fast > slow
		},
	},
	{
		Key:         MACDBullish,
		Name:        "📊 MACD BULLISH CROSS",
		Description: "MACD crosses signal upward",
		Condition: func(ind models.IndicatorSnapshot, _ models.PriceChange, _ *models.Prediction) bool {
			return ind.MACDCross == models.CrossBullish
		},
	},
	{
		Key:         VolumeExplosion,
		Name:        "💥 VOLUME EXPLOSION",
		Description: "Volume +500% in 5m",
		Condition: func(_ models.IndicatorSnapshot, change models.PriceChange, _ *models.Prediction) bool {
			return change.Volume >= 500
		},
	},
	{
		Key:         AIHighConfidence,
		Name:        "🤖 AI HIGH CONFIDENCE",
		Description: "AI TP1 probability ≥80%",
		Condition: func(_ models.IndicatorSnapshot, _ models.PriceChange, pred *models.Prediction) bool {
			return pred != nil && pred.Prob1 >= 80
		},
	},
	{
		Key:         AIQuickFlip,
		Name:        "⚡ AI QUICK FLIP",
		Description: "AI TP1 ≥15% + time <30min",
		Condition: func(_ models.IndicatorSnapshot, _ models.PriceChange, pred *models.Prediction) bool {
			if pred == nil || pred.Entry <= 0 {
				return false
			}
			gain := (pred.TP1 - pred.Entry) / pred.Entry * 100
			return gain >= 15 && (strings.Contains(pred.Time1, "15") || strings.Contains(pred.Time1, "30"))
		},
	},
}

var byKey = func() map[Key]Preset {
	m := make(map[Key]Preset, len(catalog))
	for _, p := range catalog {
		m[p.Key] = p
	}
	return m
}()

// Lookup returns the preset for key
func Lookup(key Key) (Preset, bool) {
	p, ok := byKey[key]
	return p, ok
}

// All returns every preset in catalog order
func All() []Preset {
	out := make([]Preset, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns every preset key in catalog order
func Keys() []Key {
	keys := make([]Key, len(catalog))
	for i, p := range catalog {
		keys[i] = p.Key
	}
	return keys
}

// IsAI reports whether the preset depends on a prediction
func (k Key) IsAI() bool {
	return k == AIHighConfidence || k == AIQuickFlip
}

// Valid reports whether k names a catalog preset
func (k Key) Valid() bool {
	_, ok := byKey[k]
	return ok
}
