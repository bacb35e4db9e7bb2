// Package pipeline fans stream events out to classification workers and tees
// every raw event into the archive stage.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/archive"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/config"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/orchestrator"
)

// Pipeline consumes the stream manager's events. Worker pipelines run
// concurrently with each other but every pipeline runs its own event to
// completion; there is no mid-pipeline cancellation.
type Pipeline struct {
	orchestrator  *orchestrator.Orchestrator
	archiveWriter *archive.BatchWriter
	workers       int
	archiveBuffer int
	metrics       *metrics.Metrics
	log           *zap.Logger
}

// New creates a new pipeline
func New(cfg *config.Config, orch *orchestrator.Orchestrator, archiver archive.Archiver, m *metrics.Metrics, log *zap.Logger) *Pipeline {
	writer := archive.NewBatchWriter(archiver, archive.BatchWriterConfig{
		MaxBatchSize: cfg.Pipeline.ArchiveBatchSizeMax,
		FlushTimeout: time.Duration(cfg.Pipeline.ArchiveFlushTimeoutSec) * time.Second,
	}, m, log)

	return &Pipeline{
		orchestrator:  orch,
		archiveWriter: writer,
		workers:       cfg.Pipeline.Workers,
		archiveBuffer: cfg.Pipeline.ArchiveBufferSize,
		metrics:       m,
		log:           log,
	}
}

// Start runs the pipeline until the input channel closes or the context is
// cancelled.
func (p *Pipeline) Start(ctx context.Context, in <-chan *domain.StreamEvent) error {
	workChan := make(chan *domain.StreamEvent, p.workers)
	archiveChan := make(chan *domain.StreamEvent, p.archiveBuffer)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.archiveWriter.Start(ctx, archiveChan)
	}()

	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			p.work(ctx, workChan)
		}()
	}

	p.dispatch(ctx, in, workChan, archiveChan)

	close(workChan)
	close(archiveChan)
	wg.Wait()

	return nil
}

// dispatch feeds workers and tees raw events toward the archive. A lagging
// archive never blocks classification: its events are dropped and counted.
func (p *Pipeline) dispatch(ctx context.Context, in <-chan *domain.StreamEvent, workChan, archiveChan chan<- *domain.StreamEvent) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Pipeline shutting down")
			return
		case ev, ok := <-in:
			if !ok {
				p.log.Info("Pipeline input channel closed")
				return
			}

			select {
			case archiveChan <- ev:
			default:
				p.metrics.ArchiveDropped.Inc()
			}

			select {
			case <-ctx.Done():
				p.log.Info("Pipeline shutting down while dispatching")
				return
			case workChan <- ev:
			}
		}
	}
}

// work classifies and orchestrates events until the work channel closes.
func (p *Pipeline) work(ctx context.Context, workChan <-chan *domain.StreamEvent) {
	for ev := range workChan {
		verdict := p.orchestrator.Process(ctx, ev)
		p.metrics.Verdicts.WithLabelValues(verdict.String()).Inc()
	}
}
