package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"soundwatch/internal/models"
)

// Telegram posts alerts through the Bot API sendMessage method
type Telegram struct {
	client *http.Client
	apiURL string
	chatID string
}

// NewTelegram creates a Telegram notifier. apiBase defaults to the public
// Bot API.
func NewTelegram(apiBase, token, chatID string, timeout time.Duration) *Telegram {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		client: &http.Client{Timeout: timeout},
		apiURL: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(apiBase, "/"), token),
		chatID: chatID,
	}
}

// Name implements Notifier
func (t *Telegram) Name() string { return "telegram" }

// Notify implements Notifier
func (t *Telegram) Notify(ctx context.Context, d models.Decision) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", telegramText(d))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func telegramText(d models.Decision) string {
	return fmt.Sprintf(
		"*SYSTEM ALERT*\n\n"+
			"Abnormal behaviour detected on the equipment.\n\n"+
			"Detected status: *%s*\n"+
			"Confidence: *%.2f%%*\n\n"+
			"_Inspection by a technician is recommended._",
		strings.ToUpper(d.Status.String()), d.Confidence*100,
	)
}
