package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/models"
)

func newTestUsers() *Users {
	u := NewUsers(NewMemory())
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return u
}

func TestUsers_AddTokenMergesDuplicates(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()

	outcome, err := users.AddToken(ctx, "1", models.WatchedToken{Address: "0xAbC", Chain: "base", Symbol: "PEPE"})
	require.NoError(t, err)
	assert.Equal(t, TokenAdded, outcome)

	outcome, err = users.AddToken(ctx, "1", models.WatchedToken{Address: "0xabc", PairAddress: "0xpair"})
	require.NoError(t, err)
	assert.Equal(t, TokenUpdated, outcome)

	tokens, err := users.WatchlistTokens(ctx, "1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "PEPE", tokens[0].Symbol)
	assert.Equal(t, "0xpair", tokens[0].PairAddress)
	assert.Equal(t, "base", tokens[0].Chain)
	assert.Equal(t, int64(1700000000000), tokens[0].AddedAt)
}

func TestUsers_AddTokenWithoutDedup(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()
	require.NoError(t, users.Store().Set(ctx, UserPath("1", "watchlist", "dedup"), false))

	_, err := users.AddToken(ctx, "1", models.WatchedToken{Address: "0xabc"})
	require.NoError(t, err)
	outcome, err := users.AddToken(ctx, "1", models.WatchedToken{Address: "0xABC"})
	require.NoError(t, err)
	assert.Equal(t, TokenAdded, outcome)

	tokens, err := users.WatchlistTokens(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestUsers_MergeTokensReturnsOnlyNew(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()
	_, err := users.AddToken(ctx, "1", models.WatchedToken{Address: "0xAAA"})
	require.NoError(t, err)

	added, err := users.MergeTokens(ctx, "1", []models.WatchedToken{
		{Address: "0xaaa"},
		{Address: "0xbbb"},
		{Address: "0xBBB"},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "0xbbb", added[0].Address)

	added, err = users.MergeTokens(ctx, "1", []models.WatchedToken{{Address: "0xAaA"}})
	require.NoError(t, err)
	assert.Empty(t, added)

	tokens, err := users.WatchlistTokens(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestUsers_TogglePreset(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()

	on, err := users.TogglePreset(ctx, "1", "VOLUME_EXPLOSION")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := users.TogglePreset(ctx, "1", "VOLUME_EXPLOSION")
	require.NoError(t, err)
	assert.False(t, off)

	rec, err := users.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, models.PresetEnablement{Enabled: false, CreatedAt: 1700000000000}, rec.Alerts["VOLUME_EXPLOSION"])
}

func TestUsers_PriceAlertsAreKeyedByLowercaseAddress(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()

	alerts := []models.PriceAlert{{ID: "x", Type: models.AlertBelow, Price: 0.2}}
	require.NoError(t, users.SetPriceAlerts(ctx, "1", "0xDeF", alerts))

	got, err := users.PriceAlerts(ctx, "1", "0xdef")
	require.NoError(t, err)
	assert.Equal(t, alerts, got)

	all, err := users.AllPriceAlerts(ctx, "1")
	require.NoError(t, err)
	assert.Contains(t, all, "0xdef")
}

func TestUsers_AIHistory(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()
	require.NoError(t, users.SetAIEnabled(ctx, "1", true))
	require.NoError(t, users.AppendAIHistory(ctx, "1", models.AIHistoryEntry{
		Indicators: models.UnavailableSnapshot(),
		Outcome:    models.OutcomePending,
	}))

	history, err := users.AIHistory(ctx, "1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.Unavailable, history[0].Indicators.RSI)

	rec, err := users.Load(ctx, "1")
	require.NoError(t, err)
	assert.True(t, rec.AI.Enabled)
}

func TestUsers_ConcurrentAddTokenKeepsEveryToken(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := users.AddToken(ctx, "1", models.WatchedToken{Address: fmt.Sprintf("0x%02d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tokens, err := users.WatchlistTokens(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, tokens, 20)
}
