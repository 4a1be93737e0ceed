package watchlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/db"
	"dexalert/internal/market"
	"dexalert/internal/models"
)

type stubProvider struct {
	search    []models.PairSnapshot
	watchlist []models.PairSnapshot
	err       error
}

func (s *stubProvider) GetPair(context.Context, string, string) (*models.PairSnapshot, error) {
	return nil, market.ErrNoData
}

func (s *stubProvider) SearchToken(context.Context, string) ([]models.PairSnapshot, error) {
	return s.search, s.err
}

func (s *stubProvider) GetWatchlist(context.Context, string) ([]models.PairSnapshot, error) {
	return s.watchlist, s.err
}

func (s *stubProvider) Name() string { return "stub" }

func newService(p *stubProvider) (*Service, *db.Users) {
	users := db.NewUsers(db.NewMemory())
	return NewService(users, p), users
}

func TestAdd_DetectsBestPair(t *testing.T) {
	p := &stubProvider{search: []models.PairSnapshot{
		{ChainID: "base", PairAddress: "0xsmall", BaseAddress: "0xTok", Symbol: "TOK", LiquidityUSD: 100, URL: "https://dexscreener.com/base/0xsmall"},
		{ChainID: "ethereum", PairAddress: "0xbig", BaseAddress: "0xTok", Symbol: "TOK", LiquidityUSD: 5000, URL: "https://dexscreener.com/ethereum/0xbig"},
		{ChainID: "pulsechain", PairAddress: "0xnope", BaseAddress: "0xTok", LiquidityUSD: 1e9},
	}}
	svc, users := newService(p)
	ctx := context.Background()

	status, tok, err := svc.Add(ctx, "7", AddRequest{Address: "0xTok"})
	require.NoError(t, err)
	assert.Equal(t, db.TokenAdded, status)
	assert.Equal(t, "ethereum", tok.Chain)
	assert.Equal(t, "0xbig", tok.PairAddress)
	assert.Equal(t, models.SourceDex, tok.Source)

	// Asking for a specific chain picks that chain's pair and merges into the same entry
	status, tok, err = svc.Add(ctx, "7", AddRequest{Address: "0xtok", Chain: "Base"})
	require.NoError(t, err)
	assert.Equal(t, db.TokenUpdated, status)
	assert.Equal(t, "0xsmall", tok.PairAddress)

	stored, err := users.WatchlistTokens(ctx, "7")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "base", stored[0].Chain)

	_, _, err = svc.Add(ctx, "7", AddRequest{Address: "0xTok", Chain: "solana"})
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestAdd_ManualPair(t *testing.T) {
	svc, _ := newService(&stubProvider{err: market.ErrAPIError})

	status, tok, err := svc.Add(context.Background(), "7", AddRequest{
		Address: " 0xabc ", Chain: "BSC", PairAddress: "0xpair", Symbol: "ABC",
	})
	require.NoError(t, err)
	assert.Equal(t, db.TokenAdded, status)
	assert.Equal(t, "0xabc", tok.Address)
	assert.Equal(t, models.SourceManual, tok.Source)
	assert.Equal(t, "https://dexscreener.com/bsc/0xpair", tok.URL)

	_, _, err = svc.Add(context.Background(), "7", AddRequest{})
	assert.ErrorIs(t, err, ErrAddressRequired)

	_, _, err = svc.Add(context.Background(), "7", AddRequest{Address: "0xdef"})
	assert.ErrorIs(t, err, market.ErrAPIError)
}

func TestImport_ReturnsOnlyNewTokens(t *testing.T) {
	p := &stubProvider{watchlist: []models.PairSnapshot{
		{ChainID: "solana", PairAddress: "p1", BaseAddress: "Mint1", Symbol: "ONE"},
		{ChainID: "base", PairAddress: "p2", BaseAddress: "0xTWO", Symbol: "TWO"},
		{ChainID: "base", PairAddress: "p3"},
	}}
	svc, users := newService(p)
	ctx := context.Background()

	_, err := users.AddToken(ctx, "7", models.WatchedToken{Address: "0xtwo", Symbol: "TWO"})
	require.NoError(t, err)

	added, err := svc.Import(ctx, "7", "https://dexscreener.com/watchlist/abc123")
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "ONE", added[0].Symbol)
	assert.Equal(t, models.SourceDex, added[0].Source)

	again, err := svc.Import(ctx, "7", "abc123")
	require.NoError(t, err)
	assert.Empty(t, again)

	tokens, err := svc.Tokens(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}
