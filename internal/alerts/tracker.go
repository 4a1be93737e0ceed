package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dexalert/internal/models"
)

// ErrInvalidAlert is returned when an alert definition cannot be evaluated
var ErrInvalidAlert = errors.New("invalid price alert")

// ErrTokenNotWatched is returned when adding an alert for a token outside the watchlist
var ErrTokenNotWatched = errors.New("token not found in watchlist")

// Store is the persistence the tracker needs
type Store interface {
	WatchlistTokens(ctx context.Context, userID string) ([]models.WatchedToken, error)
	PriceAlerts(ctx context.Context, userID, tokenKey string) ([]models.PriceAlert, error)
	AllPriceAlerts(ctx context.Context, userID string) (map[string][]models.PriceAlert, error)

	// Updates hold the user's document from read to write; fn reports whether to store its result.
	UpdatePriceAlerts(ctx context.Context, userID, tokenKey string,
		fn func([]models.PriceAlert) ([]models.PriceAlert, bool)) error
	UpdateAllPriceAlerts(ctx context.Context, userID string,
		fn func(map[string][]models.PriceAlert) (map[string][]models.PriceAlert, bool)) error
}

// Matches reports whether price satisfies the alert's condition, ignoring its triggered flag
func Matches(alert models.PriceAlert, price float64) bool {
	switch alert.Type {
	case models.AlertAbove:
		return price >= alert.Price
	case models.AlertBelow:
		return price <= alert.Price
	case models.AlertRange:
		return price >= alert.MinPrice && price <= alert.MaxPrice
	default:
		return false
	}
}

// Evaluate marks every untriggered alert that price satisfies. It returns the
// full updated list and the newly triggered subset; the input is not modified.
// Triggered alerts never fire again.
func Evaluate(alerts []models.PriceAlert, price float64, now time.Time) ([]models.PriceAlert, []models.PriceAlert) {
	updated := make([]models.PriceAlert, len(alerts))
	copy(updated, alerts)

	var fired []models.PriceAlert
	for i := range updated {
		a := &updated[i]
		if a.Triggered || !Matches(*a, price) {
			continue
		}
		a.Triggered = true
		a.TriggeredAt = now.UnixMilli()
		a.TriggeredPrice = price
		fired = append(fired, *a)
	}
	return updated, fired
}

// Validate checks that an alert is well formed
func Validate(alert models.PriceAlert) error {
	switch alert.Type {
	case models.AlertAbove, models.AlertBelow:
		if alert.Price <= 0 {
			return fmt.Errorf("%w: %s alert needs a positive price", ErrInvalidAlert, alert.Type)
		}
	case models.AlertRange:
		if alert.MinPrice <= 0 || alert.MaxPrice <= 0 || alert.MinPrice > alert.MaxPrice {
			return fmt.Errorf("%w: range needs 0 < min <= max", ErrInvalidAlert)
		}
	default:
		return fmt.Errorf("%w: unknown type %q (use above, below or range)", ErrInvalidAlert, alert.Type)
	}
	return nil
}

// Tracker manages one-shot price alerts per user and token
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a price alert tracker
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Check evaluates a token's alerts at price, persists the list only when
// something fired, and returns the newly fired alerts
func (t *Tracker) Check(ctx context.Context, userID, tokenAddress string, price float64) ([]models.PriceAlert, error) {
	key := strings.ToLower(tokenAddress)
	now := t.now()

	var fired []models.PriceAlert
	err := t.store.UpdatePriceAlerts(ctx, userID, key, func(alerts []models.PriceAlert) ([]models.PriceAlert, bool) {
		var updated []models.PriceAlert
		updated, fired = Evaluate(alerts, price, now)
		return updated, len(fired) > 0
	})
	if err != nil {
		return nil, err
	}
	if len(fired) == 0 {
		return nil, nil
	}

	log.Debug().Str("component", "alerts").Str("user", userID).Str("token", key).
		Int("fired", len(fired)).Float64("price", price).Msg("price alerts triggered")
	return fired, nil
}

// Add validates and stores a new alert for a watched token
func (t *Tracker) Add(ctx context.Context, userID, tokenAddress string, alert models.PriceAlert) (models.PriceAlert, error) {
	if err := Validate(alert); err != nil {
		return models.PriceAlert{}, err
	}

	tokens, err := t.store.WatchlistTokens(ctx, userID)
	if err != nil {
		return models.PriceAlert{}, err
	}
	key := strings.ToLower(tokenAddress)
	watched := false
	for _, tok := range tokens {
		if tok.Key() == key {
			watched = true
			break
		}
	}
	if !watched {
		return models.PriceAlert{}, ErrTokenNotWatched
	}

	alert.ID = uuid.NewString()
	alert.Triggered = false
	alert.TriggeredAt = 0
	alert.TriggeredPrice = 0
	alert.CreatedAt = t.now().UnixMilli()

	err = t.store.UpdatePriceAlerts(ctx, userID, key, func(existing []models.PriceAlert) ([]models.PriceAlert, bool) {
		return append(existing, alert), true
	})
	if err != nil {
		return models.PriceAlert{}, err
	}
	return alert, nil
}

// ClearTriggered removes triggered alerts and drops tokens left without any.
// It returns how many alerts were removed.
func (t *Tracker) ClearTriggered(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := t.store.UpdateAllPriceAlerts(ctx, userID, func(all map[string][]models.PriceAlert) (map[string][]models.PriceAlert, bool) {
		kept := make(map[string][]models.PriceAlert, len(all))
		for key, alerts := range all {
			var active []models.PriceAlert
			for _, a := range alerts {
				if a.Triggered {
					removed++
					continue
				}
				active = append(active, a)
			}
			if len(active) > 0 {
				kept[key] = active
			}
		}
		return kept, removed > 0
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// List returns every alert the user has, keyed by lowercase token address
func (t *Tracker) List(ctx context.Context, userID string) (map[string][]models.PriceAlert, error) {
	return t.store.AllPriceAlerts(ctx, userID)
}
