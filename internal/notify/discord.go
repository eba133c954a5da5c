package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// discordEmbedColor is Discord's blurple (#5865F2).
const discordEmbedColor = 5793266

// DiscordSink posts a "new items" event to a Discord incoming webhook as
// a rich embed. It carries its own rate limiter and retry/backoff loop
// rather than relying on Hub's shared limiter alone, matching Discord's
// documented webhook limit of 30 requests/minute.
type DiscordSink struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDiscordSink builds a DiscordSink posting to webhookURL.
func NewDiscordSink(webhookURL string, timeout time.Duration) *DiscordSink {
	return &DiscordSink{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(0.5), 3), // 30 req/min, burst 3
	}
}

func (d *DiscordSink) Name() string { return "discord" }

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title     string             `json:"title"`
	Color     int                `json:"color"`
	Footer    discordEmbedFooter `json:"footer"`
	Timestamp string             `json:"timestamp"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func (d *DiscordSink) Send(ctx context.Context, ev Event) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: discord rate limiter: %w", err)
	}
	return d.sendWithRetry(ctx, ev)
}

const (
	discordMaxAttempts = 2
	discordBaseDelay   = 5 * time.Second
)

func (d *DiscordSink) sendWithRetry(ctx context.Context, ev Event) error {
	var lastErr error
	for attempt := 1; attempt <= discordMaxAttempts; attempt++ {
		err := d.post(ctx, ev)
		if err == nil {
			return nil
		}
		lastErr = err

		if rl, ok := as429(err); ok {
			slog.Warn("discord rate limit hit, backing off", slog.Duration("retry_after", rl.RetryAfter), slog.Int("attempt", attempt))
			select {
			case <-time.After(rl.RetryAfter):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !retryable(err) {
			return err
		}
		if attempt < discordMaxAttempts {
			select {
			case <-time.After(discordBaseDelay * time.Duration(attempt)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("notify: discord send failed after %d attempts: %w", discordMaxAttempts, lastErr)
}

func (d *DiscordSink) post(ctx context.Context, ev Event) error {
	title := ev.Title
	if title == "" {
		title = string(ev.Node)
	}

	payload := discordPayload{Embeds: []discordEmbed{{
		Title:     fmt.Sprintf("%d new item(s) in %s", ev.Delta, title),
		Color:     discordEmbedColor,
		Footer:    discordEmbedFooter{Text: title},
		Timestamp: ev.Time.Format(time.RFC3339),
	}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: discord request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{Message: "discord rate limit exceeded", RetryAfter: discordRetryAfter(resp, respBody)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &clientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord client error: %s", respBody)}
	case resp.StatusCode >= 500:
		return &serverError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("discord server error: %s", respBody)}
	default:
		return fmt.Errorf("notify: unexpected discord status %d: %s", resp.StatusCode, respBody)
	}
}

func discordRetryAfter(resp *http.Response, body []byte) time.Duration {
	var errResp discordErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.RetryAfter > 0 {
		return time.Duration(errResp.RetryAfter * float64(time.Second))
	}
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}
