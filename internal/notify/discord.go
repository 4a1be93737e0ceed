package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"time"

	"dexalert/internal/models"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// DiscordNotifier mirrors notifications to a Discord webhook
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     sharedHTTPClient,
	}
}

// Type returns the notifier type
func (d *DiscordNotifier) Type() string {
	return "discord"
}

// Send mirrors preset and price alerts to the webhook. Summaries are not mirrored.
func (d *DiscordNotifier) Send(ctx context.Context, notification models.Notification) error {
	if d.webhookURL == "" || notification.Kind == models.KindSummary {
		return nil
	}

	// Choose color based on notification kind
	color := 0x808080 // gray
	switch notification.Kind {
	case models.KindPresetAlert:
		color = 0x00FF00 // green
	case models.KindPriceAlert:
		color = 0xFFFF00 // yellow
	}

	fields := []map[string]interface{}{
		{"name": "User", "value": notification.UserID, "inline": true},
		{"name": "Type", "value": notification.Kind, "inline": true},
	}
	if notification.Symbol != "" {
		fields = append(fields, map[string]interface{}{"name": "Symbol", "value": notification.Symbol, "inline": true})
	}
	if notification.Preset != "" {
		fields = append(fields, map[string]interface{}{"name": "Preset", "value": notification.Preset, "inline": true})
	}

	sentAt := notification.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	webhook := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       notification.Title,
				"description": PlainText(notification.Message),
				"color":       color,
				"fields":      fields,
				"timestamp":   sentAt.Format(time.RFC3339),
				"footer": map[string]string{
					"text": "DEX Alert Scanner",
				},
			},
		},
	}

	jsonBody, err := json.Marshal(webhook)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: discord returned status %d", ErrNotificationFailed, resp.StatusCode)
	}

	return nil
}

// PlainText strips HTML markup from a Telegram-formatted message
func PlainText(message string) string {
	return html.UnescapeString(htmlTag.ReplaceAllString(message, ""))
}
