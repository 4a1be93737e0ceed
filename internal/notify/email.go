package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dexalert/internal/models"
)

const resendURL = "https://api.resend.com/emails"

// EmailNotifier mirrors alerts to operator mailboxes through the Resend API
type EmailNotifier struct {
	apiKey    string
	fromEmail string
	to        []string
	url       string
	client    *http.Client
}

// NewEmailNotifier creates an email notifier. An empty url uses Resend.
func NewEmailNotifier(apiKey, fromEmail string, to []string, url string) *EmailNotifier {
	if fromEmail == "" {
		fromEmail = "DEX Alerts <alerts@resend.dev>" // Default Resend sender
	}
	if url == "" {
		url = resendURL
	}
	return &EmailNotifier{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		to:        to,
		url:       url,
		client:    sharedHTTPClient,
	}
}

// Type returns the notifier type
func (e *EmailNotifier) Type() string {
	return "email"
}

// Send emails preset and price alerts. Summaries are not mirrored.
func (e *EmailNotifier) Send(ctx context.Context, notification models.Notification) error {
	if e.apiKey == "" || len(e.to) == 0 || notification.Kind == models.KindSummary {
		return nil
	}

	payload := map[string]interface{}{
		"from":    e.fromEmail,
		"to":      e.to,
		"subject": notification.Title,
		"html":    formatEmailBody(notification),
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal email payload: %v", ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrNotificationFailed, err)
	}

	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send email: %v", ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%w: resend returned status %d: %v", ErrNotificationFailed, resp.StatusCode, errResp)
	}
	return nil
}

func formatEmailBody(n models.Notification) string {
	// Choose color based on notification kind
	color := "#6366f1" // default indigo
	switch n.Kind {
	case models.KindPresetAlert:
		color = "#22c55e" // green
	case models.KindPriceAlert:
		color = "#eab308" // yellow
	}

	// Telegram HTML uses newlines rather than block elements
	body := strings.ReplaceAll(n.Message, "\n", "<br>")

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" style="width: 100%%; border-collapse: collapse;">
    <tr>
      <td style="padding: 40px 20px;">
        <table role="presentation" style="max-width: 600px; margin: 0 auto; background: white; border-radius: 12px; overflow: hidden;">
          <tr>
            <td style="padding: 24px 30px 0 30px;">
              <span style="display: inline-block; background: %s; color: white; padding: 6px 14px; border-radius: 20px; font-size: 12px; font-weight: 600; text-transform: uppercase;">%s</span>
            </td>
          </tr>
          <tr>
            <td style="padding: 20px 30px 30px 30px;">
              <h2 style="margin: 0 0 12px 0; color: #111827; font-size: 20px;">%s</h2>
              <p style="margin: 0; color: #374151; font-size: 15px; line-height: 1.6;">%s</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 16px 30px; background: #f9fafb; text-align: center; border-top: 1px solid #e5e7eb;">
              <p style="margin: 0; color: #9ca3af; font-size: 12px;">User %s</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`, color, n.Kind, n.Title, body, n.UserID)
}
