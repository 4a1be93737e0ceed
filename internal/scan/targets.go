package scan

import (
	"sort"

	"dexalert/internal/models"
	"dexalert/internal/presets"
)

// Target is one token paired with the presets to evaluate for it
type Target struct {
	Token   models.WatchedToken
	Presets []presets.Key
	Source  string
}

// Target sources
const (
	SourceWatchlist = "watchlist"
	SourceLegacy    = "legacy"
)

// FilterBlacklisted drops tokens whose symbol is on the blacklist. Matching is exact and case-sensitive.
func FilterBlacklisted(tokens []models.WatchedToken, blacklist []string) []models.WatchedToken {
	if len(blacklist) == 0 {
		return tokens
	}
	blocked := make(map[string]bool, len(blacklist))
	for _, s := range blacklist {
		blocked[s] = true
	}

	out := make([]models.WatchedToken, 0, len(tokens))
	for _, t := range tokens {
		if !blocked[t.Symbol] {
			out = append(out, t)
		}
	}
	return out
}

// EnabledPresets returns the user's globally enabled presets in catalog order.
// Unknown keys are ignored.
func EnabledPresets(rec *models.UserRecord) []presets.Key {
	var keys []presets.Key
	for _, k := range presets.Keys() {
		if e, ok := rec.Alerts[string(k)]; ok && e.Enabled {
			keys = append(keys, k)
		}
	}
	return keys
}

// SimplifiedTargets pairs every non-blacklisted watchlist token with the
// globally enabled presets. Nothing is scanned when either side is empty.
func SimplifiedTargets(rec *models.UserRecord) []Target {
	keys := EnabledPresets(rec)
	if len(rec.Watchlist.Tokens) == 0 || len(keys) == 0 {
		return nil
	}

	var targets []Target
	for _, t := range FilterBlacklisted(rec.Watchlist.Tokens, rec.Blacklist) {
		targets = append(targets, Target{Token: t, Presets: keys, Source: SourceWatchlist})
	}
	return targets
}

// LegacyTargets pairs each named watchlist's tokens with that list's active alerts
func LegacyTargets(rec *models.UserRecord) []Target {
	names := make([]string, 0, len(rec.Watchlists))
	for name := range rec.Watchlists {
		names = append(names, name)
	}
	sort.Strings(names)

	var targets []Target
	for _, name := range names {
		wl := rec.Watchlists[name]

		var keys []presets.Key
		for _, a := range wl.Alerts {
			k := presets.Key(a.Preset)
			if a.Active && k.Valid() {
				keys = append(keys, k)
			}
		}

		for _, t := range FilterBlacklisted(wl.Tokens, rec.Blacklist) {
			targets = append(targets, Target{Token: t, Presets: keys, Source: SourceLegacy + ":" + name})
		}
	}
	return targets
}

// Targets is every target the user's record describes, simplified list first
func Targets(rec *models.UserRecord) []Target {
	return append(SimplifiedTargets(rec), LegacyTargets(rec)...)
}
