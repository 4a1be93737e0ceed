// Package watchlist adds tokens to a user's watchlist, resolving chain and pair
// from market data when the caller only knows the token address.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"dexalert/internal/db"
	"dexalert/internal/market"
	"dexalert/internal/models"
)

var (
	// ErrAddressRequired is returned when a token has no address
	ErrAddressRequired = errors.New("token address is required")
	// ErrChainNotFound is returned when the token trades on none of the requested chains
	ErrChainNotFound = errors.New("token not found on requested chain")
)

// AddRequest describes a token to watch. PairAddress and Chain are looked up
// when PairAddress is empty.
type AddRequest struct {
	Address     string `json:"address"`
	Chain       string `json:"chain,omitempty"`
	PairAddress string `json:"pairAddress,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Service manages watchlist contents
type Service struct {
	users    *db.Users
	provider market.Provider
}

// NewService creates a watchlist service
func NewService(users *db.Users, provider market.Provider) *Service {
	return &Service{users: users, provider: provider}
}

// Tokens lists the user's watched tokens
func (s *Service) Tokens(ctx context.Context, userID string) ([]models.WatchedToken, error) {
	return s.users.WatchlistTokens(ctx, userID)
}

// Detect lists candidate pairs for a token address, one per supported chain
func (s *Service) Detect(ctx context.Context, address string) ([]models.PairSnapshot, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	return market.DetectChains(ctx, s.provider, address)
}

// Add watches a token. Tokens given with a pair address are stored as manual
// entries; otherwise the best pair is detected and the token is stored as a dex entry.
// It returns db.TokenAdded or db.TokenUpdated and the stored token.
func (s *Service) Add(ctx context.Context, userID string, req AddRequest) (string, models.WatchedToken, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return "", models.WatchedToken{}, ErrAddressRequired
	}

	token := models.WatchedToken{
		Address:     address,
		Chain:       strings.ToLower(strings.TrimSpace(req.Chain)),
		Symbol:      strings.TrimSpace(req.Symbol),
		PairAddress: strings.TrimSpace(req.PairAddress),
		URL:         req.URL,
		Source:      models.SourceManual,
	}

	if token.PairAddress == "" {
		candidates, err := s.Detect(ctx, address)
		if err != nil {
			return "", models.WatchedToken{}, fmt.Errorf("detect chain: %w", err)
		}
		pair, ok := pickCandidate(candidates, token.Chain)
		if !ok {
			return "", models.WatchedToken{}, ErrChainNotFound
		}
		token = fromPair(pair)
		token.Address = address
		if req.Symbol != "" {
			token.Symbol = req.Symbol
		}
	}
	if token.URL == "" && token.Chain != "" {
		token.URL = fmt.Sprintf("https://dexscreener.com/%s/%s", token.Chain, token.PairAddress)
	}

	status, err := s.users.AddToken(ctx, userID, token)
	if err != nil {
		return "", models.WatchedToken{}, err
	}

	log.Info().Str("component", "watchlist").Str("user", userID).Str("token", token.Symbol).
		Str("chain", token.Chain).Str("status", status).Msg("token watched")
	return status, token, nil
}

// Import merges the tokens of a public DexScreener watchlist and returns only the new ones
func (s *Service) Import(ctx context.Context, userID, idOrURL string) ([]models.WatchedToken, error) {
	pairs, err := s.provider.GetWatchlist(ctx, idOrURL)
	if err != nil {
		return nil, err
	}

	tokens := make([]models.WatchedToken, 0, len(pairs))
	for _, p := range pairs {
		if p.BaseAddress == "" {
			continue
		}
		tokens = append(tokens, fromPair(p))
	}

	added, err := s.users.MergeTokens(ctx, userID, tokens)
	if err != nil {
		return nil, err
	}

	log.Info().Str("component", "watchlist").Str("user", userID).
		Int("pairs", len(pairs)).Int("added", len(added)).Msg("watchlist imported")
	return added, nil
}

func pickCandidate(candidates []models.PairSnapshot, chain string) (models.PairSnapshot, bool) {
	if len(candidates) == 0 {
		return models.PairSnapshot{}, false
	}
	if chain == "" {
		return candidates[0], true
	}
	for _, c := range candidates {
		if c.ChainID == chain {
			return c, true
		}
	}
	return models.PairSnapshot{}, false
}

func fromPair(p models.PairSnapshot) models.WatchedToken {
	return models.WatchedToken{
		Address:     p.BaseAddress,
		Chain:       p.ChainID,
		Symbol:      p.Symbol,
		PairAddress: p.PairAddress,
		URL:         p.URL,
		Source:      models.SourceDex,
	}
}
