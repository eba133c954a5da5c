package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink posts a Slack-Block-Kit-compatible payload to an incoming
// webhook URL for each new-items event.
type WebhookSink struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewWebhookSink builds a WebhookSink named name posting to url.
func NewWebhookSink(name, url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return s.name }

type webhookPayload struct {
	Text   string          `json:"text"`
	Blocks []webhookBlock  `json:"blocks"`
}

type webhookBlock struct {
	Type string           `json:"type"`
	Text *webhookTextBlob `json:"text,omitempty"`
}

type webhookTextBlob struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *WebhookSink) Send(ctx context.Context, ev Event) error {
	title := ev.Title
	if title == "" {
		title = string(ev.Node)
	}
	payload := webhookPayload{
		Text: fmt.Sprintf("%d new item(s) in %s", ev.Delta, title),
		Blocks: []webhookBlock{{
			Type: "section",
			Text: &webhookTextBlob{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%d new item(s)", title, ev.Delta)},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
