package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

var htmlTagRe = regexp.MustCompile(`</?(b|i|a)(\s[^>]*)?>`)

// Send posts a message to the Discord webhook. Telegram HTML markup is
// stripped since Discord renders markdown.
func (d *DiscordSender) Send(ctx context.Context, message string) error {
	payload := map[string]string{
		"content": htmlTagRe.ReplaceAllString(message, ""),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// SendPhoto falls back to a text-only message; the webhook payload is kept
// simple.
func (d *DiscordSender) SendPhoto(ctx context.Context, caption string, _ []byte) error {
	return d.Send(ctx, caption)
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
