package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier pushes a text payload to a destination. Best-effort: callers
// treat failures as non-fatal and typically just log them.
type Notifier interface {
	Send(ctx context.Context, destination, text string) error
}

// WebhookNotifier POSTs notifications as JSON to an HTTP endpoint. The
// destination is the webhook URL; an empty destination falls back to the
// configured default URL.
type WebhookNotifier struct {
	defaultURL string
	client     *http.Client
}

// NewWebhookNotifier creates a notifier with the given default URL and
// per-request timeout.
func NewWebhookNotifier(defaultURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		defaultURL: defaultURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Send POSTs {"text": ...} to the destination URL.
func (n *WebhookNotifier) Send(ctx context.Context, destination, text string) error {
	url := destination
	if url == "" {
		url = n.defaultURL
	}
	if url == "" {
		return fmt.Errorf("notify: no webhook URL configured")
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
