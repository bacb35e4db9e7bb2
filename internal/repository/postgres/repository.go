package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// Repository implements repository.ReportStore for Postgres/PostGIS
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new Postgres repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the report and participant tables if they don't exist.
// The all_participants view is the global known-users set the new-user check
// runs against.
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS confirmed_reports (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			body TEXT NOT NULL,
			language TEXT,
			hashtags JSONB,
			urls JSONB,
			mentions JSONB,
			the_geom GEOMETRY(Point, 4326) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS unconfirmed_reports (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			the_geom GEOMETRY(Point, 4326) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nonspatial_reports (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			body TEXT NOT NULL,
			language TEXT,
			hashtags JSONB,
			urls JSONB,
			mentions JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS reporters (
			user_hash CHAR(32) PRIMARY KEY,
			report_count BIGINT NOT NULL DEFAULT 1,
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS nonspatial_reporters (
			user_hash CHAR(32) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS invitees (
			user_hash CHAR(32) PRIMARY KEY,
			invited_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE OR REPLACE VIEW all_participants AS
			SELECT user_hash FROM reporters
			UNION
			SELECT user_hash FROM nonspatial_reporters
			UNION
			SELECT user_hash FROM invitees`,
	}

	for _, stmt := range statements {
		if _, err := r.client.Pool().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	r.log.Info("Postgres schema initialized successfully")
	return nil
}

// InsertConfirmedReport persists a confirmed report with its geometry
func (r *Repository) InsertConfirmedReport(ctx context.Context, ev *domain.StreamEvent) error {
	if ev.Geo == nil {
		return fmt.Errorf("confirmed report requires coordinates")
	}

	hashtags, urls, mentions, err := entityJSON(ev)
	if err != nil {
		return err
	}

	_, err = r.client.Pool().Exec(ctx,
		`INSERT INTO confirmed_reports (created_at, body, language, hashtags, urls, mentions, the_geom)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, ST_SetSRID(ST_MakePoint($7, $8), 4326))`,
		ev.PostedAt, ev.Text, ev.Language, hashtags, urls, mentions,
		ev.Geo.Longitude, ev.Geo.Latitude)
	if err != nil {
		return fmt.Errorf("failed to insert confirmed report: %w", err)
	}
	return nil
}

// InsertUnconfirmedReport persists an unconfirmed report (geometry only)
func (r *Repository) InsertUnconfirmedReport(ctx context.Context, ev *domain.StreamEvent) error {
	if ev.Geo == nil {
		return fmt.Errorf("unconfirmed report requires coordinates")
	}

	_, err := r.client.Pool().Exec(ctx,
		`INSERT INTO unconfirmed_reports (created_at, the_geom)
		 VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326))`,
		ev.PostedAt, ev.Geo.Longitude, ev.Geo.Latitude)
	if err != nil {
		return fmt.Errorf("failed to insert unconfirmed report: %w", err)
	}
	return nil
}

// InsertNonSpatialReport persists a report without coordinates
func (r *Repository) InsertNonSpatialReport(ctx context.Context, ev *domain.StreamEvent) error {
	hashtags, urls, mentions, err := entityJSON(ev)
	if err != nil {
		return err
	}

	_, err = r.client.Pool().Exec(ctx,
		`INSERT INTO nonspatial_reports (created_at, body, language, hashtags, urls, mentions)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb)`,
		ev.PostedAt, ev.Text, ev.Language, hashtags, urls, mentions)
	if err != nil {
		return fmt.Errorf("failed to insert nonspatial report: %w", err)
	}
	return nil
}

// UpsertReporter records a confirmed-report author, bumping the report count
// for an author that already exists.
func (r *Repository) UpsertReporter(ctx context.Context, handle string) error {
	_, err := r.client.Pool().Exec(ctx,
		`INSERT INTO reporters (user_hash) VALUES (md5($1))
		 ON CONFLICT (user_hash) DO UPDATE
		 SET report_count = reporters.report_count + 1, last_seen = now()`,
		handle)
	if err != nil {
		return fmt.Errorf("failed to upsert reporter: %w", err)
	}
	return nil
}

// ReporterKnown checks the author hash against the all_participants view
func (r *Repository) ReporterKnown(ctx context.Context, handle string) (bool, error) {
	var known bool
	err := r.client.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM all_participants WHERE user_hash = md5($1))`,
		handle).Scan(&known)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return known, nil
}

// InsertNonSpatialReporter records the author of a non-spatial report. The
// conflict clause absorbs the race where two concurrent events from the same
// unseen author both pass the new-user check.
func (r *Repository) InsertNonSpatialReporter(ctx context.Context, handle string) error {
	_, err := r.client.Pool().Exec(ctx,
		`INSERT INTO nonspatial_reporters (user_hash) VALUES (md5($1))
		 ON CONFLICT (user_hash) DO NOTHING`,
		handle)
	if err != nil {
		return fmt.Errorf("failed to insert nonspatial reporter: %w", err)
	}
	return nil
}

// InsertInvitee records a dispatched invitation
func (r *Repository) InsertInvitee(ctx context.Context, handle string) error {
	_, err := r.client.Pool().Exec(ctx,
		`INSERT INTO invitees (user_hash) VALUES (md5($1))
		 ON CONFLICT (user_hash) DO NOTHING`,
		handle)
	if err != nil {
		return fmt.Errorf("failed to insert invitee: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Pool().Ping(ctx)
}

// Close closes the store and releases resources
func (r *Repository) Close() {
	r.client.Close()
}

// entityJSON marshals the passthrough entity payloads for JSONB columns.
// Empty slices become NULL.
func entityJSON(ev *domain.StreamEvent) (any, any, any, error) {
	marshal := func(records []json.RawMessage) (any, error) {
		if len(records) == 0 {
			return nil, nil
		}
		b, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entities: %w", err)
		}
		return string(b), nil
	}

	hashtags, err := marshal(ev.Entities.Hashtags)
	if err != nil {
		return nil, nil, nil, err
	}
	urls, err := marshal(ev.Entities.URLs)
	if err != nil {
		return nil, nil, nil, err
	}
	mentions, err := marshal(ev.Entities.Mentions)
	if err != nil {
		return nil, nil, nil, err
	}
	return hashtags, urls, mentions, nil
}
