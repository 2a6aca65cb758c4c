package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// webhookTimeout bounds one delivery attempt.
const webhookTimeout = 10 * time.Second

// WebhookSender POSTs release events as JSON to a plain webhook URL.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender creates a WebhookSender with the default client.
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: webhookTimeout}}
}

// webhookPayload is the wire shape receivers get.
type webhookPayload struct {
	Event   string `json:"event"`
	Tracker string `json:"tracker"`
	Release struct {
		Name        string `json:"name"`
		Tag         string `json:"tag"`
		Version     string `json:"version"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Prerelease  bool   `json:"prerelease"`
	} `json:"release"`

	// Compatibility keys so test pings render in chat-style receivers.
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Send delivers one event. Non-2xx responses count as failures.
func (s *WebhookSender) Send(ctx context.Context, notifier models.Notifier, event Event) error {
	rel := event.Release
	payload := webhookPayload{Event: event.Kind, Tracker: rel.TrackerName}
	payload.Release.Name = rel.Name
	payload.Release.Tag = rel.TagName
	payload.Release.Version = rel.Version
	payload.Release.URL = rel.URL
	payload.Release.PublishedAt = rel.PublishedAt.Format(time.RFC3339)
	payload.Release.Prerelease = rel.Prerelease

	if event.Kind == EventTest {
		msg := fmt.Sprintf("Signalbox test notification for %q", notifier.Name)
		payload.Message = msg
		payload.Content = msg
		payload.Text = msg
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook %s: encode payload: %w", notifier.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifier.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: build request: %w", notifier.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: post: %w", notifier.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", notifier.Name, resp.StatusCode)
	}
	return nil
}
