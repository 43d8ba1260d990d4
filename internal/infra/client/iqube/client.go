// Package iqube is the best-effort failure-notification client. Errors are
// logged by the caller, never surfaced as pipeline failures.
package iqube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coordinatorsvc/coordinator/internal/infra/metrics"
)

const clientName = "iqube"

// Notification is the IQube failure-notification body.
type Notification struct {
	FilePath string `json:"file_path"`
	Reason   string `json:"reason"`
}

// Client calls the IQube notification endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New builds a Client. timeout is IQube's own short request timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        clientName,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.RecordBreakerState(name, breakerStateOf(to))
			},
		}),
	}
}

func breakerStateOf(s gobreaker.State) metrics.BreakerState {
	switch s {
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	default:
		return metrics.BreakerClosed
	}
}

// Notify posts n and returns any error encountered. Callers treat this as
// best-effort: a non-nil error is logged and otherwise ignored, and never
// changes the file's terminal status.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal iqube notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build iqube request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	_, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("iqube returned http %d", resp.StatusCode)
		}
		return nil, nil
	})
	if breakerErr != nil {
		metrics.ObserveCall(clientName, "error", time.Since(start).Seconds())
		return fmt.Errorf("iqube request failed: %w", breakerErr)
	}

	metrics.ObserveCall(clientName, "ok", time.Since(start).Seconds())
	return nil
}
