// Package foi is the content-extraction client: multipart upload to the FOI
// service and classification of its response into the extraction outcome
// taxonomy.
package foi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coordinatorsvc/coordinator/internal/domain/pipeline"
	"github.com/coordinatorsvc/coordinator/internal/infra/metrics"
)

const clientName = "foi"

// Upload describes one extraction request.
type Upload struct {
	Remitter   string
	Filename   string
	Content    io.Reader
	TempPwd    string
	ReplacePwd bool
}

// Client calls the FOI extraction endpoint. The URL template contains the
// literal substring "{remitter}", substituted per request.
type Client struct {
	urlTemplate string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
}

// New builds a Client. timeout is FOI's own long request timeout.
func New(urlTemplate string, timeout time.Duration) *Client {
	return &Client{
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: timeout},
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

// Extract uploads u and returns the classified outcome. Network errors,
// timeouts, and 5xx responses classify as ExtractionServiceFailed rather
// than propagating as Go errors — only an unrecoverable local error (e.g.
// failing to build the multipart body) returns a non-nil error.
func (c *Client) Extract(ctx context.Context, u Upload) (pipeline.Outcome, error) {
	body, contentType, err := buildMultipart(u)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("build foi multipart body: %w", err)
	}

	endpoint := strings.ReplaceAll(c.urlTemplate, "{remitter}", url.PathEscape(u.Remitter))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("build foi request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	result, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return classifyResponse(resp)
	})

	if breakerErr != nil {
		// Network error, timeout, or open breaker: service is at fault.
		metrics.ObserveCall(clientName, "error", time.Since(start).Seconds())
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: breakerErr.Error()}, nil
	}

	metrics.ObserveCall(clientName, "ok", time.Since(start).Seconds())
	return result.(pipeline.Outcome), nil
}

func buildMultipart(u Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", u.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, u.Content); err != nil {
		return nil, "", err
	}

	if u.TempPwd != "" {
		if err := w.WriteField("temp_pwd", u.TempPwd); err != nil {
			return nil, "", err
		}
	}
	if u.ReplacePwd {
		if err := w.WriteField("replace_pwd", strconv.FormatBool(u.ReplacePwd)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// foiResponse mirrors the two response shapes the FOI service can return.
type foiResponse struct {
	Result []json.RawMessage `json:"result"`
	Failed []failedItem      `json:"failed"`
}

type failedItem struct {
	FailureReason string `json:"failure_reason"`
}

// classifyResponse maps an FOI HTTP response onto the extraction outcome
// taxonomy.
func classifyResponse(resp *http.Response) (pipeline.Outcome, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	if resp.StatusCode >= 500 {
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: fmt.Sprintf("http %d", resp.StatusCode)}, nil
	}

	if resp.StatusCode >= 400 {
		return pipeline.Outcome{Kind: pipeline.ExtractionFileFailed, Detail: fmt.Sprintf("http %d", resp.StatusCode)}, nil
	}

	// HTTP 200 from here on.
	var body foiResponse
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: "malformed json body"}, nil
	}
	if _, isObject := probe.(map[string]interface{}); !isObject {
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: "response body is not an object"}, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: "response body did not match expected shape"}, nil
	}

	if len(body.Failed) > 0 {
		reason := strings.ToLower(body.Failed[0].FailureReason)
		switch {
		case strings.Contains(reason, "invalid password"):
			return pipeline.Outcome{Kind: pipeline.ExtractionFilePasswordFailed, Detail: body.Failed[0].FailureReason}, nil
		default:
			// "no matched template", "data format error", and any other
			// failure_reason all land here.
			return pipeline.Outcome{Kind: pipeline.ExtractionFileFailed, Detail: body.Failed[0].FailureReason}, nil
		}
	}

	if len(body.Result) == 0 {
		return pipeline.Outcome{Kind: pipeline.ExtractionServiceFailed, Detail: "empty or missing result"}, nil
	}

	return pipeline.Outcome{Kind: pipeline.ExtractionSuccess, Result: body.Result}, nil
}
