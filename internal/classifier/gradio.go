package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	retry "github.com/sethvargo/go-retry"

	"github.com/straja-ai/emotion/internal/config"
	"github.com/straja-ai/emotion/internal/redact"
)

const previewLen = 200

// Gradio classifies text through a Gradio app's call API: a POST queues the
// job and returns an event id, a GET streams the result as server-sent events.
type Gradio struct {
	baseURL          string
	apiName          string
	model            string
	maxRetries       int
	retryDelay       time.Duration
	maxResponseBytes int64
	httpClient       *http.Client
}

type GradioOption func(*Gradio)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) GradioOption {
	return func(g *Gradio) {
		if c != nil {
			g.httpClient = c
		}
	}
}

func NewGradio(cfg config.GradioConfig, modelID string, opts ...GradioOption) (*Gradio, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("gradio: invalid base url %q", redact.URL(cfg.BaseURL))
	}

	g := &Gradio{
		baseURL:          base,
		apiName:          strings.Trim(cfg.APIName, "/"),
		model:            modelID,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       cfg.RetryDelay,
		maxResponseBytes: cfg.MaxResponseBytes,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
	}
	if g.apiName == "" {
		g.apiName = "analyze"
	}
	if g.maxRetries < 1 {
		g.maxRetries = 1
	}
	if g.retryDelay <= 0 {
		g.retryDelay = 700 * time.Millisecond
	}
	if g.maxResponseBytes <= 0 {
		g.maxResponseBytes = 1 << 20
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gradio) Model() string   { return g.model }
func (g *Gradio) Backend() string { return "gradio" }
func (g *Gradio) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

func (g *Gradio) Classify(ctx context.Context, text string) (Prediction, error) {
	eventID, err := g.submit(ctx, text)
	if err != nil {
		return Prediction{}, err
	}

	body, err := g.fetchResult(ctx, eventID)
	if err != nil {
		return Prediction{}, err
	}

	p, err := ParseLabelScore(body)
	if err != nil {
		log.Warn().
			Err(err).
			Str("event_id", eventID).
			Str("preview", preview(body)).
			Msg("gradio: could not parse result")
		return Prediction{}, err
	}
	return p, nil
}

func (g *Gradio) callURL() string {
	return g.baseURL + "/gradio_api/call/" + url.PathEscape(g.apiName)
}

func (g *Gradio) submit(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string][]string{"data": {text}})
	if err != nil {
		return "", fmt.Errorf("gradio: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.callURL(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gradio: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", g.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxResponseBytes))
	if err != nil {
		return "", g.transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: preview(string(body))}
	}

	var evt struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return "", malformed("event id response: %v", err)
	}
	if strings.TrimSpace(evt.EventID) == "" {
		log.Error().Str("response", preview(string(body))).Msg("gradio: empty event_id")
		return "", malformed("empty event_id")
	}
	return evt.EventID, nil
}

// fetchResult polls for the queued result, backing off exponentially from
// retryDelay between attempts.
func (g *Gradio) fetchResult(ctx context.Context, eventID string) (string, error) {
	resultURL := g.callURL() + "/" + url.PathEscape(eventID)
	backoff := retry.WithMaxRetries(uint64(g.maxRetries-1), retry.NewExponential(g.retryDelay))

	var body string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Int("attempt", attempt).Int("max_retries", g.maxRetries).
				Msg("gradio: result request failed")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, g.maxResponseBytes))
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Int("max_retries", g.maxRetries).
				Msg("gradio: result not ready")
			return retry.RetryableError(&UpstreamError{StatusCode: resp.StatusCode, Body: preview(string(b))})
		}

		body = string(b)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: result for event %s not available after %d attempts: %v",
			ErrUnavailable, eventID, attempt, err)
	}

	log.Debug().Str("event_id", eventID).Int("attempt", attempt).Msg("gradio: analysis retrieved")
	return body, nil
}

func (g *Gradio) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %s timed out", ErrUnavailable, redact.URL(g.baseURL))
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, redact.String(err.Error()))
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return strings.ToValidUTF8(s[:previewLen], "")
}
