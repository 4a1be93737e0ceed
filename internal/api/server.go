package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dexalert/internal/alerts"
	"dexalert/internal/db"
	"dexalert/internal/market"
	"dexalert/internal/metrics"
	"dexalert/internal/notify"
	"dexalert/internal/scan"
	"dexalert/internal/watchlist"
)

const (
	// HTTP Headers
	HEADER_CONTENT_TYPE = "Content-Type"

	// Content Types
	CONTENT_TYPE_JSON = "application/json"

	// HTTP Status Codes
	METHOD_NOT_ALLOWED = "Method not allowed"

	// Validation Errors
	INVALID_JSON    = "Invalid JSON"
	INVALID_USER_ID = "Invalid user ID"
	INVALID_PRESET  = "Unknown preset"
	USER_REQUIRED   = "Query parameter user is required"

	// Errors
	ADDRESS_REQUIRED       = "Token address is required"
	WATCHLIST_URL_REQUIRED = "Watchlist URL or ID is required"
	SCAN_IN_PROGRESS       = "Scan already in progress"
)

// Scanner runs guarded scan cycles
type Scanner interface {
	RunNow(ctx context.Context) (scan.Result, error)
	Running() bool
}

// Summarizer broadcasts the daily summary
type Summarizer interface {
	DailySummary(ctx context.Context) (int, error)
}

// Deps are the services the API exposes
type Deps struct {
	Users      *db.Users
	Alerts     *alerts.Tracker
	Watchlist  *watchlist.Service
	Provider   market.Provider
	Scanner    Scanner
	Summarizer Summarizer
	Notifier   *notify.Service
	Hub        *notify.Hub
	Metrics    *metrics.Registry
}

// Server holds the API server dependencies
type Server struct {
	users      *db.Users
	alerts     *alerts.Tracker
	watchlist  *watchlist.Service
	provider   market.Provider
	scanner    Scanner
	summarizer Summarizer
	notifier   *notify.Service
	hub        *notify.Hub
	metrics    *metrics.Registry
	upgrader   websocket.Upgrader
	now        func() time.Time
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	return &Server{
		users:      deps.Users,
		alerts:     deps.Alerts,
		watchlist:  deps.Watchlist,
		provider:   deps.Provider,
		scanner:    deps.Scanner,
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		hub:        deps.Hub,
		metrics:    deps.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Alert feed is read-only
			},
		},
		now: time.Now,
	}
}

// SetupRoutes sets up all API routes
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("/api/health", s.handleHealth)

	// Scan triggers
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/cron", s.handleCron)
	mux.HandleFunc("/api/daily-summary", s.handleDailySummary)

	// Catalog and market data
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/pairs/{chain}/{pair}", s.handlePair)
	mux.HandleFunc("/api/detect/{address}", s.handleDetect)

	// Per-user state
	mux.HandleFunc("/api/users/{id}", s.handleUser)
	mux.HandleFunc("/api/users/{id}/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/users/{id}/watchlist/import", s.handleWatchlistImport)
	mux.HandleFunc("/api/users/{id}/blacklist", s.handleBlacklist)
	mux.HandleFunc("/api/users/{id}/presets/{key}/toggle", s.handlePresetToggle)
	mux.HandleFunc("/api/users/{id}/ai", s.handleAI)
	mux.HandleFunc("/api/users/{id}/alerts", s.handleAlerts)
	mux.HandleFunc("/api/users/{id}/alerts/clear", s.handleAlertsClear)
	mux.HandleFunc("/api/users/{id}/test-notification", s.handleTestNotification)

	// Notification channels
	mux.HandleFunc("/api/notification-channels", s.handleNotificationChannels)

	// WebSocket for real-time alerts
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	// Prometheus
	mux.Handle("/metrics", s.metrics.Handler())
}

// Handler returns the routed API with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return corsMiddleware(mux)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
