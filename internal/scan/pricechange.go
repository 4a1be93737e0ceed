package scan

import (
	"context"

	"dexalert/internal/models"
)

// PriceChangeSource supplies the short-term movement presets evaluate against
type PriceChangeSource interface {
	Change(ctx context.Context, token models.WatchedToken, pair *models.PairSnapshot, candles []models.Candle) models.PriceChange
}

// PairChange derives movement from the pair snapshot: the 5 minute price change
// as reported, and 5 minute volume relative to the hourly per-5-minute average.
// Dump and recovery detection is not implemented and always reads false.
type PairChange struct{}

// Change implements PriceChangeSource
func (PairChange) Change(_ context.Context, _ models.WatchedToken, pair *models.PairSnapshot, _ []models.Candle) models.PriceChange {
	if pair == nil {
		return models.PriceChange{}
	}
	return models.PriceChange{
		Price5m: pair.PriceChange5m,
		Volume:  VolumeChange(pair.Volume5m, pair.Volume1h),
	}
}

// VolumeChange is the percent increase of the last 5 minutes' volume over the
// average 5 minute slice of the last hour
func VolumeChange(volume5m, volume1h float64) float64 {
	avg := volume1h / 12
	if avg <= 0 {
		return 0
	}
	return (volume5m - avg) / avg * 100
}
