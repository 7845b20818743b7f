package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/straja-ai/emotion/internal/redact"
)

const (
	webhookRetries     = 2
	webhookBaseBackoff = 100 * time.Millisecond
)

// WebhookSink POSTs each event as JSON, retrying transport errors and
// non-2xx answers with exponential backoff.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
	backoff time.Duration
}

func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook url is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &WebhookSink{
		url:     url,
		headers: maps.Clone(headers),
		client:  &http.Client{Timeout: timeout},
		backoff: webhookBaseBackoff,
	}, nil
}

func (s *WebhookSink) Name() string { return "webhook:" + redact.URL(s.url) }

func (s *WebhookSink) Deliver(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	b := retry.WithMaxRetries(webhookRetries, retry.NewExponential(s.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post: %w", err))
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return retry.RetryableError(fmt.Errorf("status %d body=%q", resp.StatusCode, truncateBody(body)))
		}
		return nil
	})
}

func (s *WebhookSink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
