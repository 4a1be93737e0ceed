package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dexalert/internal/market"
	"dexalert/internal/metrics"
	"dexalert/internal/models"
	"dexalert/internal/presets"
)

// UserStore loads the records a cycle scans
type UserStore interface {
	UserIDs(ctx context.Context) ([]string, error)
	Load(ctx context.Context, userID string) (*models.UserRecord, error)
}

// CandleFetcher returns the candle series and pair snapshot for a token
type CandleFetcher interface {
	Fetch(ctx context.Context, token models.WatchedToken) ([]models.Candle, *models.PairSnapshot, error)
}

// IndicatorComputer turns candles into an indicator snapshot. It never fails;
// problems surface as the unavailable snapshot.
type IndicatorComputer interface {
	Compute(ctx context.Context, candles []models.Candle) models.IndicatorSnapshot
}

// Predictor produces a trade plan. It never fails; problems surface as the fallback.
type Predictor interface {
	Predict(ctx context.Context, userID string, ind models.IndicatorSnapshot, price float64) models.Prediction
}

// AlertChecker fires the user's price alerts for a token
type AlertChecker interface {
	Check(ctx context.Context, userID, tokenAddress string, price float64) ([]models.PriceAlert, error)
}

// Dispatcher delivers notifications
type Dispatcher interface {
	Notify(ctx context.Context, notification models.Notification) []error
}

// Deps are the collaborators an Orchestrator drives
type Deps struct {
	Users       UserStore
	Candles     CandleFetcher
	Indicators  IndicatorComputer
	Predictor   Predictor
	Alerts      AlertChecker
	Notifier    Dispatcher
	PriceChange PriceChangeSource
	Metrics     *metrics.Registry
}

// Orchestrator runs scan cycles. Users and their tokens are processed sequentially.
type Orchestrator struct {
	deps Deps
}

// New creates an orchestrator. A nil PriceChange uses PairChange.
func New(deps Deps) *Orchestrator {
	if deps.PriceChange == nil {
		deps.PriceChange = PairChange{}
	}
	return &Orchestrator{deps: deps}
}

// UserResult summarizes one user's scan
type UserResult struct {
	UserID       string `json:"user_id"`
	Targets      int    `json:"targets"`
	Skipped      int    `json:"skipped"`
	PresetAlerts int    `json:"preset_alerts"`
	PriceAlerts  int    `json:"price_alerts"`
}

// Result summarizes a whole cycle
type Result struct {
	CycleID   string        `json:"cycle_id"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Alerts    int           `json:"alerts"`
	Duration  time.Duration `json:"duration"`
}

// userCycle carries per-user state for one scan
type userCycle struct {
	rec    *models.UserRecord
	result *UserResult
	fired  map[string]bool
	logger zerolog.Logger
}

func (c *userCycle) claim(token models.WatchedToken, key presets.Key) bool {
	id := token.Key() + "|" + string(key)
	if c.fired[id] {
		return false
	}
	c.fired[id] = true
	return true
}

// ScanAll scans every known user. Failing to enumerate users ends the cycle
// early and is returned; per-user failures are logged and skipped.
func (o *Orchestrator) ScanAll(ctx context.Context) (Result, error) {
	res := Result{CycleID: uuid.NewString()}
	logger := log.With().Str("component", "scan").Str("cycle", res.CycleID).Logger()
	start := time.Now()
	done := o.deps.Metrics.StartScan()

	ids, err := o.deps.Users.UserIDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to enumerate users")
		done("error")
		return res, fmt.Errorf("enumerate users: %w", err)
	}

	logger.Info().Int("users", len(ids)).Msg("scan cycle started")
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		ur, err := o.ScanUser(ctx, id)
		if err != nil {
			res.Failed++
			continue
		}
		res.Processed++
		res.Alerts += ur.PresetAlerts + ur.PriceAlerts
	}

	res.Duration = time.Since(start)
	done("ok")
	logger.Info().
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("alerts", res.Alerts).
		Dur("duration", res.Duration).
		Msg("scan cycle finished")
	return res, nil
}

// ScanUser evaluates every target in the user's record and sends the resulting
// alerts. Only a failure to load the record is returned.
func (o *Orchestrator) ScanUser(ctx context.Context, userID string) (UserResult, error) {
	result := UserResult{UserID: userID}
	logger := log.With().Str("component", "scan").Str("user", userID).Logger()

	rec, err := o.deps.Users.Load(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load user")
		return result, fmt.Errorf("load user %s: %w", userID, err)
	}

	targets := Targets(rec)
	result.Targets = len(targets)
	if len(targets) == 0 {
		return result, nil
	}

	cycle := &userCycle{
		rec:    rec,
		result: &result,
		fired:  make(map[string]bool),
		logger: logger,
	}
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		o.scanTarget(ctx, cycle, t)
	}

	logger.Debug().
		Int("targets", result.Targets).
		Int("skipped", result.Skipped).
		Int("preset_alerts", result.PresetAlerts).
		Int("price_alerts", result.PriceAlerts).
		Msg("user scanned")
	return result, nil
}

func (o *Orchestrator) scanTarget(ctx context.Context, c *userCycle, t Target) {
	logger := c.logger.With().Str("token", t.Token.Symbol).Str("address", t.Token.Address).
		Str("source", t.Source).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("token scan panicked")
			o.deps.Metrics.RecordTokenError("panic")
			c.result.Skipped++
		}
	}()

	candles, pair, err := o.deps.Candles.Fetch(ctx, t.Token)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			logger.Debug().Msg("no market data, skipping token")
		} else {
			logger.Warn().Err(err).Msg("market data unavailable, skipping token")
		}
		o.deps.Metrics.RecordTokenError("market")
		c.result.Skipped++
		return
	}
	price := pair.PriceUSD
	if t.Token.URL == "" {
		t.Token.URL = pair.URL
	}

	ind := o.deps.Indicators.Compute(ctx, candles)
	change := o.deps.PriceChange.Change(ctx, t.Token, pair, candles)

	var pred *models.Prediction
	if c.rec.AI.Enabled && o.deps.Predictor != nil {
		p := o.deps.Predictor.Predict(ctx, c.rec.ID, ind, price)
		pred = &p
	}

	for _, key := range t.Presets {
		preset, ok := presets.Lookup(key)
		if !ok || !preset.Evaluate(ind, change, pred) {
			continue
		}
		o.sendPresetAlert(ctx, c, t.Token, ind, pred, price, preset)
	}

	fired, err := o.deps.Alerts.Check(ctx, c.rec.ID, t.Token.Address, price)
	if err != nil {
		logger.Warn().Err(err).Msg("price alert check failed")
		o.deps.Metrics.RecordTokenError("price_alerts")
	}
	for _, a := range fired {
		o.deps.Metrics.RecordAlert(models.KindPriceAlert, a.Type)
		c.result.PriceAlerts++
		o.deps.Notifier.Notify(ctx, models.Notification{
			UserID:  c.rec.ID,
			Kind:    models.KindPriceAlert,
			Title:   priceAlertTitle(a, t.Token),
			Message: PriceAlertMessage(t.Token, price, a),
			Symbol:  t.Token.Symbol,
		})
	}

	// A usable prediction alerts on its own when the user has AI turned on
	if pred != nil {
		for _, key := range []presets.Key{presets.AIHighConfidence, presets.AIQuickFlip} {
			preset, _ := presets.Lookup(key)
			if preset.Evaluate(ind, change, pred) {
				o.sendPresetAlert(ctx, c, t.Token, ind, pred, price, preset)
				break
			}
		}
	}
}

func (o *Orchestrator) sendPresetAlert(ctx context.Context, c *userCycle, token models.WatchedToken,
	ind models.IndicatorSnapshot, pred *models.Prediction, price float64, preset presets.Preset) {
	if !c.claim(token, preset.Key) {
		return
	}

	display := models.FallbackPrediction(price)
	if pred != nil {
		display = *pred
	}

	o.deps.Metrics.RecordAlert(models.KindPresetAlert, string(preset.Key))
	c.result.PresetAlerts++
	o.deps.Notifier.Notify(ctx, models.Notification{
		UserID:  c.rec.ID,
		Kind:    models.KindPresetAlert,
		Title:   presetTitle(preset, token),
		Message: PresetAlertMessage(token, ind, display, preset),
		Symbol:  token.Symbol,
		Preset:  string(preset.Key),
	})
}

// DailySummary sends the summary message to every known user and returns how
// many were delivered without a channel failure
func (o *Orchestrator) DailySummary(ctx context.Context) (int, error) {
	logger := log.With().Str("component", "scan").Logger()

	ids, err := o.deps.Users.UserIDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to enumerate users for summary")
		return 0, fmt.Errorf("enumerate users: %w", err)
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		errs := o.deps.Notifier.Notify(ctx, models.Notification{
			UserID:  id,
			Kind:    models.KindSummary,
			Title:   "Daily Summary",
			Message: SummaryMessage,
		})
		if len(errs) > 0 {
			failed++
			logger.Warn().Str("user", id).Errs("errors", errs).Msg("daily summary not delivered")
			continue
		}
		sent++
	}

	logger.Info().Int("sent", sent).Int("failed", failed).Msg("daily summary sent")
	return sent, nil
}

// IsSummaryTime reports whether now is the UTC midnight minute
func IsSummaryTime(now time.Time) bool {
	now = now.UTC()
	return now.Hour() == 0 && now.Minute() == 0
}
