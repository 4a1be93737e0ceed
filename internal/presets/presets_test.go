package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/models"
)

func snapshot(rsi, ema9, ema21, cross string) models.IndicatorSnapshot {
	s := models.UnavailableSnapshot()
	s.RSI = rsi
	s.EMA9 = ema9
	s.EMA21 = ema21
	s.MACDCross = cross
	return s
}

func eval(t *testing.T, key Key, ind models.IndicatorSnapshot, change models.PriceChange, pred *models.Prediction) bool {
	t.Helper()
	p, ok := Lookup(key)
	require.True(t, ok)
	return p.Evaluate(ind, change, pred)
}

func TestPresets_Thresholds(t *testing.T) {
	na := models.Unavailable
	highConf := &models.Prediction{Entry: 1, TP1: 1.1, Prob1: 80, Time1: "45 min"}
	quickFlip := &models.Prediction{Entry: 1, TP1: 1.2, Prob1: 10, Time1: "15-30 min"}

	tests := []struct {
		name   string
		key    Key
		ind    models.IndicatorSnapshot
		change models.PriceChange
		pred   *models.Prediction
		want   bool
	}{
		{"oversold at bounds", OversoldHunter, snapshot("30.0", na, na, na), models.PriceChange{Volume: 300}, nil, true},
		{"oversold low volume", OversoldHunter, snapshot("25.0", na, na, na), models.PriceChange{Volume: 299}, nil, false},
		{"oversold rsi too high", OversoldHunter, snapshot("30.1", na, na, na), models.PriceChange{Volume: 900}, nil, false},
		{"pump", PumpDetector, snapshot("49.9", na, na, na), models.PriceChange{Price5m: 15}, nil, true},
		{"pump rsi at 50", PumpDetector, snapshot("50.0", na, na, na), models.PriceChange{Price5m: 40}, nil, false},
		{"dump recovery both", DumpRecovery, models.UnavailableSnapshot(), models.PriceChange{Dump: true, Recovery: true}, nil, true},
		{"dump only", DumpRecovery, models.UnavailableSnapshot(), models.PriceChange{Dump: true}, nil, false},
		{"overbought", OverboughtExit, snapshot("70.0", na, na, na), models.PriceChange{Volume: 200}, nil, true},
		{"overbought low volume", OverboughtExit, snapshot("80.0", na, na, na), models.PriceChange{Volume: 199}, nil, false},
		{"golden cross", EMAGoldenCross, snapshot(na, "1.000002", "1.000001", na), models.PriceChange{}, nil, true},
		{"golden cross equal", EMAGoldenCross, snapshot(na, "1.000000", "1.000000", na), models.PriceChange{}, nil, false},
		{"macd bullish", MACDBullish, snapshot(na, na, na, models.CrossBullish), models.PriceChange{}, nil, true},
		{"macd bearish", MACDBullish, snapshot(na, na, na, models.CrossBearish), models.PriceChange{}, nil, false},
		{"volume explosion", VolumeExplosion, models.UnavailableSnapshot(), models.PriceChange{Volume: 500}, nil, true},
		{"volume below", VolumeExplosion, models.UnavailableSnapshot(), models.PriceChange{Volume: 499.9}, nil, false},
		{"ai high confidence", AIHighConfidence, models.UnavailableSnapshot(), models.PriceChange{}, highConf, true},
		{"ai high confidence 79", AIHighConfidence, models.UnavailableSnapshot(), models.PriceChange{}, &models.Prediction{Prob1: 79}, false},
		{"ai quick flip", AIQuickFlip, models.UnavailableSnapshot(), models.PriceChange{}, quickFlip, true},
		{"ai quick flip slow", AIQuickFlip, models.UnavailableSnapshot(), models.PriceChange{}, &models.Prediction{Entry: 1, TP1: 1.5, Time1: "1-2 hours"}, false},
		{"ai quick flip small gain", AIQuickFlip, models.UnavailableSnapshot(), models.PriceChange{}, &models.Prediction{Entry: 1, TP1: 1.14, Time1: "15 min"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.key, tt.ind, tt.change, tt.pred))
		})
	}
}

func TestPresets_UnavailableInputsAreFalse(t *testing.T) {
	ind := models.UnavailableSnapshot()
	change := models.PriceChange{Price5m: 100, Volume: 1000}
	for _, p := range All() {
		if p.Key == VolumeExplosion {
			continue // depends only on volume change
		}
		assert.False(t, p.Evaluate(ind, change, nil), p.Key)
	}
}

func TestPresets_AIPresetsNeedPrediction(t *testing.T) {
	ind := snapshot("10.0", "2", "1", models.CrossBullish)
	assert.False(t, eval(t, AIHighConfidence, ind, models.PriceChange{}, nil))
	assert.False(t, eval(t, AIQuickFlip, ind, models.PriceChange{}, nil))
	assert.True(t, AIHighConfidence.IsAI())
	assert.False(t, MACDBullish.IsAI())
}

func TestPresets_FallbackPredictionIsAQuickFlip(t *testing.T) {
	fb := models.FallbackPrediction(0.5)
	assert.True(t, eval(t, AIQuickFlip, models.UnavailableSnapshot(), models.PriceChange{}, &fb))
	assert.False(t, eval(t, AIHighConfidence, models.UnavailableSnapshot(), models.PriceChange{}, &fb))
}

func TestCatalog(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, 9)
	assert.Equal(t, OversoldHunter, keys[0])
	assert.Equal(t, AIQuickFlip, keys[8])

	_, ok := Lookup("NOPE")
	assert.False(t, ok)
	assert.True(t, Key("VOLUME_EXPLOSION").Valid())
	assert.False(t, Key("volume_explosion").Valid())
}
