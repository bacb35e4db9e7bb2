package archive

import (
	"context"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// Archiver defines the interface for the raw event archive store
type Archiver interface {
	// InsertBatch inserts a batch of raw stream events into the archive
	InsertBatch(ctx context.Context, events []*domain.StreamEvent) (int, error)

	// InitSchema initializes the archive schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the archive connection is alive
	Ping(ctx context.Context) error

	// Close closes the archiver and releases resources
	Close() error
}
