// Package itm is the downstream submission client: one JSON POST per
// process candidate, judged on the parsed "status" field.
package itm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coordinatorsvc/coordinator/internal/infra/metrics"
)

const clientName = "itm"

// Instruction is one entry of the ITM submission body.
type Instruction struct {
	SourceUniqueRef     string          `json:"sourceUniqueRef"`
	ClientAccountRegion string          `json:"clientAccountRegion"`
	MessageCategory     string          `json:"messageCategory"`
	ProductIdentifier   string          `json:"productIdentifier"`
	Payload             json.RawMessage `json:"payload"`
}

type submission struct {
	Instructions []Instruction `json:"instructions"`
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client calls the ITM submission endpoint.
type Client struct {
	url          string
	consumerType string
	sourceSystem string
	tokenSource  func() (string, error)
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
}

// New builds a Client. tokenSource supplies the bearer token for the
// Authorization header on every call (see internal/infra/secret for the
// ENV=local static-token variant).
func New(url, consumerType, sourceSystem string, tokenSource func() (string, error), timeout time.Duration) *Client {
	return &Client{
		url:          url,
		consumerType: consumerType,
		sourceSystem: sourceSystem,
		tokenSource:  tokenSource,
		httpClient:   &http.Client{Timeout: timeout},
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

// Submit posts instructions and reports whether ITM accepted them.
// A true result requires both a 2xx response and status == "success";
// everything else, including transport failures, is a failure with a
// best-effort message.
func (c *Client) Submit(ctx context.Context, instructions []Instruction) (ok bool, message string, err error) {
	token, err := c.tokenSource()
	if err != nil {
		return false, "", fmt.Errorf("acquire itm token: %w", err)
	}

	payload, err := json.Marshal(submission{Instructions: instructions})
	if err != nil {
		return false, "", fmt.Errorf("marshal itm submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, "", fmt.Errorf("build itm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Consumer-Type", c.consumerType)
	req.Header.Set("source-system", c.sourceSystem)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	result, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return parseResponse(resp)
	})
	if breakerErr != nil {
		metrics.ObserveCall(clientName, "error", time.Since(start).Seconds())
		return false, breakerErr.Error(), nil
	}

	r := result.(response)
	outcome := "ok"
	if r.Status != "success" {
		outcome = "rejected"
	}
	metrics.ObserveCall(clientName, outcome, time.Since(start).Seconds())
	return r.Status == "success", r.Message, nil
}

func parseResponse(resp *http.Response) (response, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}

	var r response
	_ = json.Unmarshal(raw, &r) // a malformed body simply fails to classify as success below

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if r.Message == "" {
			r.Message = fmt.Sprintf("http %d", resp.StatusCode)
		}
		r.Status = "failed"
	}
	return r, nil
}
