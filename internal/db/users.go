package db

import (
	"context"
	"strings"
	"time"

	"dexalert/internal/models"
)

// Token add outcomes
const (
	TokenAdded   = "added"
	TokenUpdated = "updated"
)

// Users is the typed view over user documents
type Users struct {
	store Store
	now   func() time.Time
}

// NewUsers wraps a document store
func NewUsers(store Store) *Users {
	return &Users{store: store, now: time.Now}
}

// Store exposes the underlying document store
func (u *Users) Store() Store {
	return u.store
}

// UserIDs lists every known user
func (u *Users) UserIDs(ctx context.Context) ([]string, error) {
	return u.store.UserIDs(ctx)
}

// Load reads the whole user record. A user with no document yields an empty record.
func (u *Users) Load(ctx context.Context, userID string) (*models.UserRecord, error) {
	rec := &models.UserRecord{}
	if _, err := u.store.Get(ctx, UserPath(userID), rec); err != nil {
		return nil, err
	}
	rec.ID = userID
	return rec, nil
}

// WatchlistTokens returns the simplified watchlist
func (u *Users) WatchlistTokens(ctx context.Context, userID string) ([]models.WatchedToken, error) {
	var tokens []models.WatchedToken
	if _, err := u.store.Get(ctx, UserPath(userID, "watchlist", "tokens"), &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// AddToken appends a token, or merges it into an existing entry with the same
// address when de-duplication is on (the default)
func (u *Users) AddToken(ctx context.Context, userID string, token models.WatchedToken) (string, error) {
	if token.AddedAt == 0 {
		token.AddedAt = u.now().UnixMilli()
	}

	outcome := TokenAdded
	var list models.Watchlist
	err := u.store.Update(ctx, UserPath(userID, "watchlist"), &list, func(bool) (bool, error) {
		if list.DedupEnabled() {
			for i, t := range list.Tokens {
				if strings.EqualFold(t.Address, token.Address) {
					list.Tokens[i] = mergeToken(t, token)
					outcome = TokenUpdated
					return true, nil
				}
			}
		}
		list.Tokens = append(list.Tokens, token)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// MergeTokens adds every token whose address is not already watched and returns only the new ones
func (u *Users) MergeTokens(ctx context.Context, userID string, incoming []models.WatchedToken) ([]models.WatchedToken, error) {
	var added []models.WatchedToken
	var tokens []models.WatchedToken
	err := u.store.Update(ctx, UserPath(userID, "watchlist", "tokens"), &tokens, func(bool) (bool, error) {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			seen[t.Key()] = true
		}

		for _, t := range incoming {
			if seen[t.Key()] {
				continue
			}
			seen[t.Key()] = true
			if t.AddedAt == 0 {
				t.AddedAt = u.now().UnixMilli()
			}
			added = append(added, t)
		}
		tokens = append(tokens, added...)
		return len(added) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// mergeToken overlays non-empty fields of update onto existing
func mergeToken(existing, update models.WatchedToken) models.WatchedToken {
	out := existing
	if update.Address != "" {
		out.Address = update.Address
	}
	if update.Chain != "" {
		out.Chain = update.Chain
	}
	if update.Symbol != "" {
		out.Symbol = update.Symbol
	}
	if update.PairAddress != "" {
		out.PairAddress = update.PairAddress
	}
	if update.URL != "" {
		out.URL = update.URL
	}
	if update.Source != "" {
		out.Source = update.Source
	}
	return out
}

// Blacklist returns the blacklisted symbols
func (u *Users) Blacklist(ctx context.Context, userID string) ([]string, error) {
	var list []string
	if _, err := u.store.Get(ctx, UserPath(userID, "blacklist"), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetBlacklist replaces the blacklist
func (u *Users) SetBlacklist(ctx context.Context, userID string, symbols []string) error {
	return u.store.Set(ctx, UserPath(userID, "blacklist"), symbols)
}

// TogglePreset flips a preset's enablement for the user's whole watchlist and returns the new state
func (u *Users) TogglePreset(ctx context.Context, userID, key string) (bool, error) {
	var state models.PresetEnablement
	err := u.store.Update(ctx, UserPath(userID, "alerts", key), &state, func(found bool) (bool, error) {
		if !found {
			state = models.PresetEnablement{Enabled: true, CreatedAt: u.now().UnixMilli()}
			return true, nil
		}
		state.Enabled = !state.Enabled
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// SetAIEnabled switches AI predictions on or off
func (u *Users) SetAIEnabled(ctx context.Context, userID string, enabled bool) error {
	return u.store.Set(ctx, UserPath(userID, "ai", "enabled"), enabled)
}

// AIHistory returns the full prediction history
func (u *Users) AIHistory(ctx context.Context, userID string) ([]models.AIHistoryEntry, error) {
	var history []models.AIHistoryEntry
	if _, err := u.store.Get(ctx, UserPath(userID, "ai", "history"), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// AppendAIHistory records a prediction
func (u *Users) AppendAIHistory(ctx context.Context, userID string, entry models.AIHistoryEntry) error {
	return u.store.Append(ctx, UserPath(userID, "ai", "history"), entry)
}

// PriceAlerts returns the range alerts for one token
func (u *Users) PriceAlerts(ctx context.Context, userID, tokenKey string) ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	if _, err := u.store.Get(ctx, UserPath(userID, "priceAlerts", strings.ToLower(tokenKey)), &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// SetPriceAlerts replaces the range alerts for one token
func (u *Users) SetPriceAlerts(ctx context.Context, userID, tokenKey string, alerts []models.PriceAlert) error {
	return u.store.Set(ctx, UserPath(userID, "priceAlerts", strings.ToLower(tokenKey)), alerts)
}

// UpdatePriceAlerts applies fn to one token's range alerts atomically. The
// result is stored only when fn reports a change.
func (u *Users) UpdatePriceAlerts(ctx context.Context, userID, tokenKey string,
	fn func([]models.PriceAlert) ([]models.PriceAlert, bool)) error {
	var alerts []models.PriceAlert
	return u.store.Update(ctx, UserPath(userID, "priceAlerts", strings.ToLower(tokenKey)), &alerts, func(bool) (bool, error) {
		next, changed := fn(alerts)
		alerts = next
		return changed, nil
	})
}

// AllPriceAlerts returns every token's range alerts
func (u *Users) AllPriceAlerts(ctx context.Context, userID string) (map[string][]models.PriceAlert, error) {
	all := make(map[string][]models.PriceAlert)
	if _, err := u.store.Get(ctx, UserPath(userID, "priceAlerts"), &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SetAllPriceAlerts replaces the whole price alert map
func (u *Users) SetAllPriceAlerts(ctx context.Context, userID string, all map[string][]models.PriceAlert) error {
	return u.store.Set(ctx, UserPath(userID, "priceAlerts"), all)
}

// UpdateAllPriceAlerts applies fn to the whole price alert map atomically. The
// result is stored only when fn reports a change.
func (u *Users) UpdateAllPriceAlerts(ctx context.Context, userID string,
	fn func(map[string][]models.PriceAlert) (map[string][]models.PriceAlert, bool)) error {
	all := make(map[string][]models.PriceAlert)
	return u.store.Update(ctx, UserPath(userID, "priceAlerts"), &all, func(bool) (bool, error) {
		next, changed := fn(all)
		all = next
		return changed, nil
	})
}
