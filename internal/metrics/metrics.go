// Package metrics defines the Prometheus collectors for the report worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the worker's collectors. One instance is shared across the
// stream manager, the pipeline and the gateways.
type Metrics struct {
	EventsReceived    prometheus.Counter
	Verdicts          *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	RepliesSent       *prometheus.CounterVec
	ArchiveWritten    prometheus.Counter
	ArchiveDropped    prometheus.Counter
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "events_received_total",
			Help:      "Stream events decoded and delivered to the pipeline",
		}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by outcome",
		}, []string{"verdict"}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "stream_reconnect_attempts_total",
			Help:      "Reconnection attempts against the upstream firehose",
		}),
		RepliesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "replies_sent_total",
			Help:      "Outbound replies by outcome (sent, dry_run, failed)",
		}, []string{"outcome"}),
		ArchiveWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "archive_events_written_total",
			Help:      "Raw events written to the archive store",
		}),
		ArchiveDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reports",
			Name:      "archive_events_dropped_total",
			Help:      "Raw events dropped because the archive stage lagged",
		}),
	}
}
