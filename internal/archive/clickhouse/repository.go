package clickhouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// Repository implements archive.Archiver for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse archive repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema initializes the stream_events table
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS stream_events (
		author LowCardinality(String),
		posted_at DateTime64(3),
		body String,
		language LowCardinality(String),
		has_geo UInt8,
		longitude Float64,
		latitude Float64,
		tags Array(String),
		received_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY (posted_at, author)
	PARTITION BY toYYYYMM(posted_at)
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create stream_events table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of raw stream events
func (r *Repository) InsertBatch(ctx context.Context, events []*domain.StreamEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO stream_events")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, ev := range events {
		var hasGeo uint8
		var longitude, latitude float64
		if ev.Geo != nil {
			hasGeo = 1
			longitude = ev.Geo.Longitude
			latitude = ev.Geo.Latitude
		}

		tags := ev.MatchedTags
		if tags == nil {
			tags = []string{}
		}

		err := batch.Append(
			ev.AuthorHandle,
			ev.PostedAt,
			ev.Text,
			ev.Language,
			hasGeo,
			longitude,
			latitude,
			tags,
			time.Now(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return len(events), nil
}

// Ping checks if the archive connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the archiver and releases resources
func (r *Repository) Close() error {
	return r.client.Close()
}
