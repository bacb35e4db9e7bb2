// Package archive batches every raw stream event into an analytics store.
// Archiving is best effort: failures are logged and never reach the
// classification pipeline.
package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
)

// BatchWriterConfig configures the batch writer
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchWriter batches events and writes them to the archiver
type BatchWriter struct {
	archiver Archiver
	config   BatchWriterConfig
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(archiver Archiver, config BatchWriterConfig, m *metrics.Metrics, log *zap.Logger) *BatchWriter {
	return &BatchWriter{
		archiver: archiver,
		config:   config,
		metrics:  m,
		log:      log,
	}
}

// Start consumes events, batching on size and flush timeout. The final
// batch is flushed on shutdown.
func (w *BatchWriter) Start(ctx context.Context, in <-chan *domain.StreamEvent) {
	ticker := time.NewTicker(w.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*domain.StreamEvent, 0, w.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Archive writer shutting down")
			w.flush(context.Background(), batch)
			return

		case ev, ok := <-in:
			if !ok {
				w.log.Info("Archive writer input channel closed")
				w.flush(ctx, batch)
				return
			}

			batch = append(batch, ev)

			if len(batch) >= w.config.MaxBatchSize {
				w.flush(ctx, batch)
				batch = make([]*domain.StreamEvent, 0, w.config.MaxBatchSize)
				ticker.Reset(w.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = make([]*domain.StreamEvent, 0, w.config.MaxBatchSize)
			}
		}
	}
}

// flush writes one batch; a failed write is logged and the batch dropped
func (w *BatchWriter) flush(ctx context.Context, batch []*domain.StreamEvent) {
	if len(batch) == 0 {
		return
	}

	inserted, err := w.archiver.InsertBatch(ctx, batch)
	if err != nil {
		w.log.Error("Failed to archive batch",
			zap.Error(err),
			zap.Int("event_count", len(batch)))
		w.metrics.ArchiveDropped.Add(float64(len(batch)))
		return
	}

	w.log.Info("Archived events", zap.Int("count", inserted))
	w.metrics.ArchiveWritten.Add(float64(inserted))
}
