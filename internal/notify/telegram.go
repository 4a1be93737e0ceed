package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"dexalert/internal/models"
)

const telegramBaseURL = "https://api.telegram.org"

// telegramRate stays under the Bot API's global limit of 30 messages per second
const telegramRate = 25

// TelegramNotifier sends HTML messages through the Telegram Bot API. The chat
// ID is the notification's user ID.
type TelegramNotifier struct {
	token   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(token, baseURL string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	return &TelegramNotifier{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  sharedHTTPClient,
		limiter: rate.NewLimiter(rate.Limit(telegramRate), 1),
	}
}

// Type returns the notifier type
func (t *TelegramNotifier) Type() string {
	return "telegram"
}

// Send delivers the message to the user's chat
func (t *TelegramNotifier) Send(ctx context.Context, notification models.Notification) error {
	if t.token == "" {
		return fmt.Errorf("%w: telegram bot token not configured", ErrNotificationFailed)
	}
	if notification.UserID == "" {
		return fmt.Errorf("%w: missing chat id", ErrNotificationFailed)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	body := map[string]interface{}{
		"chat_id":                  notification.UserID,
		"text":                     notification.Message,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("%w: telegram returned status %d: %s", ErrNotificationFailed, resp.StatusCode, result.Description)
	}
	return nil
}
