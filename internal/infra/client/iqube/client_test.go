package iqube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Notify_Success(t *testing.T) {
	var received Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","message":"notified"}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	err := client.Notify(context.Background(), Notification{
		FilePath: "/share/acme/REPORT.xlsx",
		Reason:   "extraction_file_password_failed: invalid password",
	})
	require.NoError(t, err)
	assert.Equal(t, "/share/acme/REPORT.xlsx", received.FilePath)
}

func TestClient_Notify_ErrorIsReturnedNotPanicked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	err := client.Notify(context.Background(), Notification{FilePath: "x", Reason: "y"})
	assert.Error(t, err)
}
