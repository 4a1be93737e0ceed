package market

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"dexalert/internal/models"
)

// Provider defines the interface for DEX market data providers
type Provider interface {
	GetPair(ctx context.Context, chain, pairAddress string) (*models.PairSnapshot, error)
	SearchToken(ctx context.Context, address string) ([]models.PairSnapshot, error)
	GetWatchlist(ctx context.Context, id string) ([]models.PairSnapshot, error)
	Name() string
}

// ErrRateLimited is returned when rate limit is exceeded
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrNoData is returned when the pair or token is unknown to the provider
var ErrNoData = errors.New("no market data")

// ErrAPIError is returned when the API returns an error
var ErrAPIError = errors.New("API error")

// ErrEmptyWatchlist is returned when an imported watchlist has no pairs
var ErrEmptyWatchlist = errors.New("empty watchlist or invalid ID")

// Shared HTTP client with tuned transport for market requests
var sharedHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	},
}

// NewProvider creates a market data provider based on the provider name
func NewProvider(name string, baseURL string) (Provider, error) {
	switch name {
	case "", "dexscreener":
		return NewDexScreener(baseURL), nil
	default:
		return nil, errors.New("unknown provider: " + name)
	}
}
