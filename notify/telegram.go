package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Telegram delivers notifications through the Telegram Bot API sendMessage
// endpoint. Send failures are logged and dropped.
type Telegram struct {
	token  string
	chatID string
	http   *http.Client
	logger *zap.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string, logger *zap.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (t *Telegram) Notify(ctx context.Context, event, message string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    fmt.Sprintf("[%s] %s", event, message),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.Warn("failed to marshal telegram payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("failed to build telegram request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		t.logger.Warn("telegram delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warn("telegram delivery rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("event", event))
	}
}
