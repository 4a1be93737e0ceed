package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dexalert/internal/metrics"
	"dexalert/internal/models"
)

// Shared HTTP client with optimized transport for all notifiers
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

// Notifier defines the interface for notification dispatchers
type Notifier interface {
	Send(ctx context.Context, notification models.Notification) error
	Type() string
}

// ErrNotificationFailed is returned when notification fails
var ErrNotificationFailed = errors.New("notification failed")

// NewNotifier creates a notifier based on the type
func NewNotifier(notifType string, config map[string]string) (Notifier, error) {
	switch notifType {
	case "telegram":
		return NewTelegramNotifier(config["token"], config["api_url"]), nil
	case "discord":
		return NewDiscordNotifier(config["webhook_url"]), nil
	case "email":
		var to []string
		for _, addr := range strings.Split(config["to"], ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		return NewEmailNotifier(config["api_key"], config["from"], to, config["api_url"]), nil
	default:
		return nil, errors.New("unknown notifier type: " + notifType)
	}
}

// Service fans notifications out to every registered channel
type Service struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	metrics   *metrics.Registry
}

// NewService creates a new notification service
func NewService(m *metrics.Registry) *Service {
	return &Service{
		notifiers: make(map[string]Notifier),
		metrics:   m,
	}
}

// RegisterNotifier registers a notifier
func (s *Service) RegisterNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers[n.Type()] = n
}

// Channels lists the registered notifier types
func (s *Service) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.notifiers))
	for t := range s.notifiers {
		out = append(out, t)
	}
	return out
}

// Notify delivers a notification on every channel. Delivery is best effort:
// failures are logged and returned but never retried.
func (s *Service) Notify(ctx context.Context, notification models.Notification) []error {
	if notification.SentAt.IsZero() {
		notification.SentAt = time.Now()
	}

	s.mu.RLock()
	notifiers := make([]Notifier, 0, len(s.notifiers))
	for _, n := range s.notifiers {
		notifiers = append(notifiers, n)
	}
	s.mu.RUnlock()

	logger := log.With().Str("component", "notify").Str("user", notification.UserID).
		Str("kind", notification.Kind).Logger()

	var errs []error
	for _, n := range notifiers {
		if err := n.Send(ctx, notification); err != nil {
			logger.Warn().Err(err).Str("channel", n.Type()).Msg("notification delivery failed")
			s.metrics.RecordNotification(n.Type(), "failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Type(), err))
			continue
		}
		s.metrics.RecordNotification(n.Type(), "sent")
	}

	logger.Debug().Int("channels", len(notifiers)).Int("failed", len(errs)).Msg("notification dispatched")
	return errs
}
