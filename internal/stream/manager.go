package stream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
)

// ManagerConfig configures the stream connection manager
type ManagerConfig struct {
	URL       string
	AuthToken string

	// IdleTimeout must exceed the provider's keep-alive interval; a read
	// that waits longer than this tears the session down.
	IdleTimeout time.Duration

	BackoffFloor   time.Duration
	BackoffCeiling time.Duration
}

// Manager owns the lifecycle of one streaming session: dial, deliver events
// in arrival order, and reconnect with exponential backoff after idle
// timeouts, transport errors or remote closes. All three disruptions leave
// the read loop and converge on the same reconnect path, which runs on the
// manager's single goroutine so attempts never stack.
type Manager struct {
	dialer  Dialer
	rules   *RuleSet
	config  ManagerConfig
	backoff *ReconnectState
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewManager creates a new stream connection manager
func NewManager(dialer Dialer, rules *RuleSet, cfg ManagerConfig, m *metrics.Metrics, log *zap.Logger) *Manager {
	return &Manager{
		dialer:  dialer,
		rules:   rules,
		config:  cfg,
		backoff: NewReconnectState(cfg.BackoffFloor, cfg.BackoffCeiling),
		metrics: m,
		log:     log,
	}
}

// Start runs the connection loop until the context is cancelled, delivering
// decoded events to the output channel. The caller must have provisioned the
// rule set before calling Start.
func (m *Manager) Start(ctx context.Context, out chan<- *domain.StreamEvent) {
	defer close(out)

	first := true
	for {
		if ctx.Err() != nil {
			m.log.Info("Stream manager shutting down")
			return
		}

		if !first {
			if !m.waitReconnect(ctx) {
				m.log.Info("Stream manager shutting down during backoff")
				return
			}
		}
		first = false

		conn, err := m.dialer.DialContext(ctx, m.config.URL, m.authHeader())
		if err != nil {
			m.log.Error("Failed to open stream", zap.Error(err))
			continue
		}

		// Session established: backoff returns to its floor.
		m.backoff.Reset()
		m.log.Info("Stream connected", zap.String("url", m.config.URL))

		m.readLoop(ctx, conn, out)

		if err := conn.Close(); err != nil {
			m.log.Warn("Failed to close stream transport", zap.Error(err))
		}
	}
}

// readLoop delivers messages until the session breaks or the context ends
func (m *Manager) readLoop(ctx context.Context, conn Conn, out chan<- *domain.StreamEvent) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(m.config.IdleTimeout)); err != nil {
			m.log.Warn("Failed to arm read deadline", zap.Error(err))
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logDisruption(err)
			return
		}

		if isKeepAlive(message) {
			continue
		}

		ev, err := decodeActivity(message, m.rules)
		if err != nil {
			m.log.Warn("Failed to decode activity",
				zap.Error(err),
				zap.ByteString("payload", message))
			continue
		}

		m.metrics.EventsReceived.Inc()

		select {
		case <-ctx.Done():
			return
		case out <- ev:
		}
	}
}

// waitReconnect sleeps for the current backoff delay, doubling it for the
// next failure. Returns false if the context ended during the wait.
func (m *Manager) waitReconnect(ctx context.Context) bool {
	delay := m.backoff.Next()
	m.metrics.ReconnectAttempts.Inc()
	m.log.Info("Reconnect scheduled", zap.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// logDisruption names which of the three disruption triggers ended the
// session; all of them recover through the same reconnect path.
func (m *Manager) logDisruption(err error) {
	var netErr net.Error
	var closeErr *websocket.CloseError

	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		m.log.Warn("Stream idle timeout",
			zap.Duration("idle_timeout", m.config.IdleTimeout))
	case errors.As(err, &closeErr):
		m.log.Warn("Stream closed by remote", zap.Error(err))
	default:
		m.log.Warn("Stream transport error", zap.Error(err))
	}
}

func (m *Manager) authHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.config.AuthToken)
	return header
}
