package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"dexalert/internal/models"
)

const dexScreenerBaseURL = "https://api.dexscreener.com"

// SupportedChains are the chains chain detection will report
var SupportedChains = []string{"ethereum", "bsc", "base", "arbitrum", "solana"}

// maxChainCandidates caps DetectChains results
const maxChainCandidates = 5

var watchlistIDPattern = regexp.MustCompile(`watchlist/([A-Za-z0-9_-]+)`)

// DexScreener implements the Provider interface for the DexScreener public API
type DexScreener struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewDexScreener creates a new DexScreener provider
func NewDexScreener(baseURL string) *DexScreener {
	if baseURL == "" {
		baseURL = dexScreenerBaseURL
	}
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  sharedHTTPClient,
		breaker: newBreaker("dexscreener"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// unknown pairs are an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, ErrEmptyWatchlist)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("component", "market").Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}

// Name returns the provider name
func (d *DexScreener) Name() string {
	return "dexscreener"
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	URL         string `json:"url"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		M5 float64 `json:"m5"`
	} `json:"priceChange"`
	Volume struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
	Pair  *dexPair  `json:"pair"`
}

func (p dexPair) snapshot() models.PairSnapshot {
	price, _ := strconv.ParseFloat(p.PriceUSD, 64)
	url := p.URL
	if url == "" && p.ChainID != "" && p.PairAddress != "" {
		url = fmt.Sprintf("https://dexscreener.com/%s/%s", p.ChainID, p.PairAddress)
	}
	return models.PairSnapshot{
		PairAddress:   p.PairAddress,
		ChainID:       p.ChainID,
		BaseAddress:   p.BaseToken.Address,
		Symbol:        p.BaseToken.Symbol,
		PriceUSD:      price,
		PriceChange5m: p.PriceChange.M5,
		Volume5m:      p.Volume.M5,
		Volume1h:      p.Volume.H1,
		Volume24h:     p.Volume.H24,
		LiquidityUSD:  p.Liquidity.USD,
		URL:           url,
	}
}

// GetPair fetches the current state of a pair. The chain may be empty.
func (d *DexScreener) GetPair(ctx context.Context, chain, pairAddress string) (*models.PairSnapshot, error) {
	if pairAddress == "" {
		return nil, ErrNoData
	}

	path := "/latest/dex/pairs/" + pairAddress
	if chain != "" {
		path = "/latest/dex/pairs/" + chain + "/" + pairAddress
	}

	var result dexPairsResponse
	if err := d.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}

	switch {
	case len(result.Pairs) > 0:
		snap := result.Pairs[0].snapshot()
		return &snap, nil
	case result.Pair != nil:
		snap := result.Pair.snapshot()
		return &snap, nil
	default:
		return nil, ErrNoData
	}
}

// SearchToken lists every pair trading the token
func (d *DexScreener) SearchToken(ctx context.Context, address string) ([]models.PairSnapshot, error) {
	var result dexPairsResponse
	if err := d.get(ctx, "/latest/dex/tokens/"+address, browserHeaders("https://dexscreener.com/"), &result); err != nil {
		return nil, err
	}
	if len(result.Pairs) == 0 {
		return nil, ErrNoData
	}

	pairs := make([]models.PairSnapshot, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		pairs = append(pairs, p.snapshot())
	}
	return pairs, nil
}

// GetWatchlist fetches a public DexScreener watchlist by ID or share URL
func (d *DexScreener) GetWatchlist(ctx context.Context, idOrURL string) ([]models.PairSnapshot, error) {
	id := WatchlistID(idOrURL)
	if id == "" {
		return nil, ErrEmptyWatchlist
	}

	var result dexPairsResponse
	headers := browserHeaders("https://dexscreener.com/watchlist/" + id)
	if err := d.get(ctx, "/watchlists/v1/"+id, headers, &result); err != nil {
		return nil, err
	}
	if len(result.Pairs) == 0 {
		return nil, ErrEmptyWatchlist
	}

	pairs := make([]models.PairSnapshot, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		pairs = append(pairs, p.snapshot())
	}
	return pairs, nil
}

// WatchlistID extracts the watchlist ID from a share URL, or returns the cleaned input
func WatchlistID(idOrURL string) string {
	clean := strings.TrimSpace(strings.NewReplacer("`", "", "<", "", ">", "").Replace(idOrURL))
	if m := watchlistIDPattern.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	return clean
}

func browserHeaders(referer string) map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Accept":          "application/json",
		"Origin":          "https://dexscreener.com",
		"Referer":         referer,
		"Accept-Language": "en-US,en;q=0.9",
	}
}

func (d *DexScreener) get(ctx context.Context, path string, headers map[string]string, out interface{}) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNoData
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: dexscreener returned status %d", ErrAPIError, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAPIError, err)
		}
		return nil, nil
	})
	return err
}

// DetectChains finds which supported chains trade a token address. Candidates are
// ordered by liquidity then 24h volume, one per chain, at most five.
func DetectChains(ctx context.Context, p Provider, address string) ([]models.PairSnapshot, error) {
	pairs, err := p.SearchToken(ctx, address)
	if err != nil {
		return nil, err
	}

	var filtered []models.PairSnapshot
	for _, pair := range pairs {
		if isSupportedChain(pair.ChainID) {
			filtered = append(filtered, pair)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].LiquidityUSD != filtered[j].LiquidityUSD {
			return filtered[i].LiquidityUSD > filtered[j].LiquidityUSD
		}
		return filtered[i].Volume24h > filtered[j].Volume24h
	})

	seen := make(map[string]bool)
	var candidates []models.PairSnapshot
	for _, pair := range filtered {
		if seen[pair.ChainID] || len(candidates) >= maxChainCandidates {
			continue
		}
		seen[pair.ChainID] = true
		if pair.Symbol == "" {
			pair.Symbol = "Unknown"
		}
		candidates = append(candidates, pair)
	}
	if len(candidates) == 0 {
		return nil, ErrNoData
	}
	return candidates, nil
}

func isSupportedChain(chainID string) bool {
	chainID = strings.ToLower(chainID)
	for _, c := range SupportedChains {
		if strings.Contains(chainID, c) {
			return true
		}
	}
	return false
}
