// Package webhook delivers refresh failure notifications to a generic
// JSON webhook (ops chat relay, incident bridge, whatever the endpoint is).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridianbank/opsdesk/internal/observability/notify"
)

// Config captures the webhook behaviour we need.
type Config struct {
	URL        string
	Source     string // reported in the envelope, defaults to "opsdesk"
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client posts refresh failure notifications to a webhook endpoint.
type Client struct {
	url        string
	source     string
	retryLimit int
	client     *http.Client
}

// envelope is the wire shape posted to the endpoint.
type envelope struct {
	Source string                       `json:"source"`
	Event  string                       `json:"event"`
	Data   notify.RefreshFailurePayload `json:"data"`
}

const eventRefreshFailure = "dataset_refresh_failure"

// NewClient builds a webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "opsdesk"
	}

	return &Client{
		url:        url,
		source:     source,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// SendRefreshFailure posts the payload wrapped in the webhook envelope.
func (c *Client) SendRefreshFailure(ctx context.Context, payload notify.RefreshFailurePayload) error {
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	body, err := json.Marshal(envelope{
		Source: c.source,
		Event:  eventRefreshFailure,
		Data:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Simple linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	return drainSuccess(resp)
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("read webhook error response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("read webhook error response: %w", readErr)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return fmt.Errorf("webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}

func drainSuccess(resp *http.Response) error {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("drain webhook response body: %w", err),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("drain webhook response body: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}
