package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"dexalert/internal/ai"
	"dexalert/internal/alerts"
	"dexalert/internal/api"
	"dexalert/internal/config"
	"dexalert/internal/db"
	"dexalert/internal/indicators"
	"dexalert/internal/market"
	"dexalert/internal/metrics"
	"dexalert/internal/notify"
	"dexalert/internal/scan"
	"dexalert/internal/scheduler"
	"dexalert/internal/watchlist"
)

// app holds the wired service graph
type app struct {
	cfg          *config.Config
	store        *db.Documents
	metrics      *metrics.Registry
	orchestrator *scan.Orchestrator
	scheduler    *scheduler.Scheduler
	server       *api.Server
}

func openStore(ctx context.Context, cfg *config.Config) (*db.Documents, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return db.New(cfg.DatabasePath)
	case config.BackendPostgres:
		return db.NewPostgres(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.BackendMemory:
		return db.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildNotifier(cfg *config.Config, m *metrics.Registry, hub *notify.Hub) (*notify.Service, error) {
	svc := notify.NewService(m)
	svc.RegisterNotifier(hub)

	if cfg.TelegramBotToken != "" {
		svc.RegisterNotifier(notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAPIURL))
	} else {
		log.Warn().Str("component", "main").Msg("TELEGRAM_BOT_TOKEN not set, alerts go to mirrors only")
	}

	if cfg.DiscordWebhookURL != "" {
		n, err := notify.NewNotifier("discord", map[string]string{"webhook_url": cfg.DiscordWebhookURL})
		if err != nil {
			return nil, err
		}
		svc.RegisterNotifier(n)
	}

	if cfg.EmailEnabled() {
		n, err := notify.NewNotifier("email", map[string]string{
			"api_key": cfg.ResendAPIKey,
			"from":    cfg.AlertEmailFrom,
			"to":      cfg.AlertEmailTo,
		})
		if err != nil {
			return nil, err
		}
		svc.RegisterNotifier(n)
	}
	return svc, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	m := metrics.New()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	users := db.NewUsers(store)

	provider, err := market.NewProvider("dexscreener", cfg.DexScreenerURL)
	if err != nil {
		store.Close()
		return nil, err
	}

	window := indicators.NewWindow(cfg.IndicatorBudget, cfg.IndicatorCooldown, m)
	gateway := indicators.NewGateway(cfg.TaapiSecret, cfg.TaapiURL, window, m)

	var completer ai.Completer
	if cfg.AIEnabled() {
		completer, err = ai.NewCompleter(strings.ToLower(cfg.AIProvider), cfg.AIAPIKey, cfg.AIModel, cfg.AIAPIURL)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	predictor := ai.NewPredictor(completer, users, m)

	hub := notify.NewHub()
	notifier, err := buildNotifier(cfg, m, hub)
	if err != nil {
		store.Close()
		return nil, err
	}

	tracker := alerts.NewTracker(users)
	orchestrator := scan.New(scan.Deps{
		Users:      users,
		Candles:    market.NewCandleSource(provider),
		Indicators: gateway,
		Predictor:  predictor,
		Alerts:     tracker,
		Notifier:   notifier,
		Metrics:    m,
	})
	sched := scheduler.New(orchestrator, cfg.ScanSchedule, cfg.SummarySchedule, m)

	server := api.NewServer(api.Deps{
		Users:      users,
		Alerts:     tracker,
		Watchlist:  watchlist.NewService(users, provider),
		Provider:   provider,
		Scanner:    sched,
		Summarizer: orchestrator,
		Notifier:   notifier,
		Hub:        hub,
		Metrics:    m,
	})

	log.Info().Str("component", "main").
		Str("store", cfg.StoreBackend).
		Str("telegram", cfg.MaskedTelegramToken()).
		Bool("ai", cfg.AIEnabled()).
		Strs("channels", notifier.Channels()).
		Msg("services wired")

	return &app{
		cfg:          cfg,
		store:        store,
		metrics:      m,
		orchestrator: orchestrator,
		scheduler:    sched,
		server:       server,
	}, nil
}

func (a *app) httpServer() *http.Server {
	return &http.Server{
		Addr:    ":" + a.cfg.Port,
		Handler: a.server.Handler(),
	}
}

func (a *app) Close() error {
	return a.store.Close()
}
