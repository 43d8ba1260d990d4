package foi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordinatorsvc/coordinator/internal/domain/pipeline"
)

func classify(t *testing.T, status int, body string) pipeline.Outcome {
	t.Helper()
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	outcome, err := classifyResponse(resp)
	require.NoError(t, err)
	return outcome
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   pipeline.ExtractionKind
	}{
		{"success", 200, `{"result":[{"a":1}],"failed":[]}`, pipeline.ExtractionSuccess},
		{"missing result", 200, `{"failed":[]}`, pipeline.ExtractionServiceFailed},
		{"empty result", 200, `{"result":[],"failed":[]}`, pipeline.ExtractionServiceFailed},
		{"non object body", 200, `["not-a-dict"]`, pipeline.ExtractionServiceFailed},
		{"invalid password", 200, `{"result":[],"failed":[{"failure_reason":"Invalid Password supplied"}]}`, pipeline.ExtractionFilePasswordFailed},
		{"no matched template", 200, `{"result":[],"failed":[{"failure_reason":"no matched template"}]}`, pipeline.ExtractionFileFailed},
		{"data format error", 200, `{"result":[],"failed":[{"failure_reason":"data format error"}]}`, pipeline.ExtractionFileFailed},
		{"unrecognized reason", 200, `{"result":[],"failed":[{"failure_reason":"something new"}]}`, pipeline.ExtractionFileFailed},
		{"http 400", 400, `{"detail":"bad"}`, pipeline.ExtractionFileFailed},
		{"http 422", 422, `{"detail":"bad"}`, pipeline.ExtractionFileFailed},
		{"http 500", 500, `{"detail":"boom"}`, pipeline.ExtractionServiceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := classify(t, tt.status, tt.body)
			assert.Equal(t, tt.want, outcome.Kind)
		})
	}
}

func TestClient_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract/acme", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "hello", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"ok":true}],"failed":[]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/extract/{remitter}", time.Second)
	outcome, err := client.Extract(context.Background(), Upload{
		Remitter: "acme",
		Filename: "REPORT.xlsx",
		Content:  bytes.NewBufferString("hello"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.IsSuccess())
}

func TestClient_Extract_NetworkErrorIsServiceFailed(t *testing.T) {
	client := New("http://127.0.0.1:1/extract/{remitter}", 50*time.Millisecond)
	outcome, err := client.Extract(context.Background(), Upload{
		Remitter: "acme",
		Filename: "REPORT.xlsx",
		Content:  bytes.NewBufferString("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ExtractionServiceFailed, outcome.Kind)
}
