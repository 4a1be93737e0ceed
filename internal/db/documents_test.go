package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/models"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		user    string
		keys    []string
		wantErr bool
	}{
		{name: "root", path: "user_42", user: "42"},
		{name: "nested", path: "user_42.ai.history", user: "42", keys: []string{"ai", "history"}},
		{name: "missing prefix", path: "42.ai", wantErr: true},
		{name: "empty id", path: "user_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, keys, err := parsePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.keys, keys)
		})
	}
}

func TestDocuments_GetSetAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var missing []string
	found, err := store.Get(ctx, "user_1.blacklist", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "user_1.ai.enabled", true))
	require.NoError(t, store.Set(ctx, "user_1.blacklist", []string{"SCAM"}))

	var enabled bool
	found, err = store.Get(ctx, "user_1.ai.enabled", &enabled)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, enabled)

	require.NoError(t, store.Append(ctx, "user_1.ai.history", models.AIHistoryEntry{Outcome: models.OutcomePending}))
	require.NoError(t, store.Append(ctx, "user_1.ai.history", models.AIHistoryEntry{Outcome: models.OutcomeWin}))

	var rec models.UserRecord
	found, err = store.Get(ctx, "user_1", &rec)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, rec.AI.Enabled)
	assert.Equal(t, []string{"SCAM"}, rec.Blacklist)
	require.Len(t, rec.AI.History, 2)
	assert.Equal(t, models.OutcomeWin, rec.AI.History[1].Outcome)
}

func TestDocuments_SetRootMergesFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "user_1.blacklist", []string{"A"}))
	require.NoError(t, store.Set(ctx, "user_1", map[string]interface{}{"ai": map[string]bool{"enabled": true}}))

	var rec models.UserRecord
	_, err := store.Get(ctx, "user_1", &rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, rec.Blacklist)
	assert.True(t, rec.AI.Enabled)

	assert.ErrorIs(t, store.Set(ctx, "user_1", 5), ErrInvalidPath)
	assert.ErrorIs(t, store.Append(ctx, "user_1", 5), ErrInvalidPath)
}

func TestDocuments_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, "user_7.ai.history", models.AIHistoryEntry{Outcome: models.OutcomePending}))
		}()
	}
	wg.Wait()

	var history []models.AIHistoryEntry
	_, err := store.Get(ctx, "user_7.ai.history", &history)
	require.NoError(t, err)
	assert.Len(t, history, 50)
}

func TestDocuments_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			assert.NoError(t, store.Update(ctx, "user_7.counter", &n, func(bool) (bool, error) {
				n++
				return true, nil
			}))
		}()
	}
	wg.Wait()

	var n int
	found, err := store.Get(ctx, "user_7.counter", &n)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 50, n)
}

func TestDocuments_UpdateSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var v string
	err := store.Update(ctx, "user_8.name", &v, func(found bool) (bool, error) {
		assert.False(t, found)
		v = "ignored"
		return false, nil
	})
	require.NoError(t, err)

	ids, err := store.UserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLite_RoundTripsTriggeredAlerts(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "dexalert.db"))
	require.NoError(t, err)
	defer store.Close()

	alerts := []models.PriceAlert{
		{ID: "a", Type: models.AlertAbove, Price: 1.5, Triggered: true, TriggeredAt: 1700000000000, TriggeredPrice: 1.62},
		{ID: "b", Type: models.AlertRange, MinPrice: 0.5, MaxPrice: 0.7},
	}
	require.NoError(t, store.Set(ctx, "user_9.priceAlerts.0xabc", alerts))
	require.NoError(t, store.Set(ctx, "user_3.ai.enabled", false))

	var got []models.PriceAlert
	found, err := store.Get(ctx, "user_9.priceAlerts.0xabc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, alerts, got)

	ids, err := store.UserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "9"}, ids)
}
