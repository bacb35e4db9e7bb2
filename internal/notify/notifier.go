// Package notify sends outbound reply messages to event authors.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/config"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
)

// Notifier defines the interface for sending a single reply to a recipient
type Notifier interface {
	SendReply(ctx context.Context, recipient, text string) error
}

// HTTPNotifier posts replies to the configured notification endpoint. When
// sending is disabled it logs the reply and reports success without
// transmitting, so dependent persistence still runs in dry-run mode.
type HTTPNotifier struct {
	client  *http.Client
	config  config.Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewHTTPNotifier creates a new HTTP notifier
func NewHTTPNotifier(cfg config.Notifier, m *metrics.Metrics, log *zap.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		config:  cfg,
		metrics: m,
		log:     log,
	}
}

type replyRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// SendReply sends one reply message to the named recipient
func (n *HTTPNotifier) SendReply(ctx context.Context, recipient, text string) error {
	if !n.config.SendEnabled {
		n.log.Info("Reply sending disabled, dry run",
			zap.String("recipient", recipient),
			zap.String("text", text))
		n.metrics.RepliesSent.WithLabelValues("dry_run").Inc()
		return nil
	}

	body, err := json.Marshal(replyRequest{Recipient: recipient, Text: text})
	if err != nil {
		n.metrics.RepliesSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		n.metrics.RepliesSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.AuthToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.RepliesSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		n.metrics.RepliesSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("reply rejected with status %d: %s", resp.StatusCode, respBody)
	}

	n.log.Info("Reply sent",
		zap.String("recipient", recipient),
		zap.Int("status", resp.StatusCode))
	n.metrics.RepliesSent.WithLabelValues("sent").Inc()

	return nil
}
