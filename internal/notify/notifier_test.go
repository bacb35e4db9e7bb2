package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/config"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestSendReply_Success(t *testing.T) {
	var received replyRequest
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(config.Notifier{
		URL:         server.URL,
		AuthToken:   "token123",
		SendEnabled: true,
		TimeoutSec:  5,
	}, newTestMetrics(), zap.NewNop())

	err := notifier.SendReply(context.Background(), "reporter1", "please add your location")

	assert.NoError(t, err)
	assert.Equal(t, "Bearer token123", auth)
	assert.Equal(t, "reporter1", received.Recipient)
	assert.Equal(t, "please add your location", received.Text)
}

func TestSendReply_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(config.Notifier{
		URL:         server.URL,
		SendEnabled: true,
		TimeoutSec:  5,
	}, newTestMetrics(), zap.NewNop())

	err := notifier.SendReply(context.Background(), "reporter1", "hello")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSendReply_DisabledIsDryRun(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(config.Notifier{
		URL:         server.URL,
		SendEnabled: false,
		TimeoutSec:  5,
	}, newTestMetrics(), zap.NewNop())

	err := notifier.SendReply(context.Background(), "reporter1", "hello")

	// Dry run reports success without transmitting.
	assert.NoError(t, err)
	assert.Zero(t, requests)
}
