package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-target-alerts/internal/errkind"
)

// TelegramChannel pushes alerts through the Telegram Bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramChannel constructs the Telegram channel.
func NewTelegramChannel(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "channel_telegram").Logger(),
	}
}

// Name identifies the channel in delivery records.
func (c *TelegramChannel) Name() string { return "telegram" }

// Send calls the sendMessage API with an HTML-formatted alert.
func (c *TelegramChannel) Send(ctx context.Context, event Event) error {
	payload := map[string]string{
		"chat_id":    c.chatID,
		"text":       renderHTML(event),
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errkind.Errorf(errkind.Fatal, "marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errkind.Errorf(errkind.Fatal, "create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errkind.Errorf(errkind.Transient, "send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := errkind.Fatal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = errkind.Transient
		}
		return errkind.Errorf(kind, "telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return errkind.Errorf(errkind.Fatal, "telegram returned ok=false")
	}

	c.logger.Info().
		Str("symbol", event.Symbol).
		Str("target_type", string(event.TargetType)).
		Time("cycle", event.CycleTS).
		Msg("alert sent via telegram")
	return nil
}

var _ Channel = (*TelegramChannel)(nil)
