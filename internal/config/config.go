package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process-level settings.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	OpsPort     string `envconfig:"SERVICE_OPS_PORT" default:"8081"`
}

// Stream holds the firehose connection settings.
type Stream struct {
	URL             string `envconfig:"STREAM_URL" required:"true"`
	RulesURL        string `envconfig:"STREAM_RULES_URL" required:"true"`
	AuthToken       string `envconfig:"STREAM_AUTH_TOKEN" required:"true"`
	IdleTimeoutSec  int    `envconfig:"STREAM_IDLE_TIMEOUT_SEC" default:"90"`
	BackoffFloorMS  int    `envconfig:"STREAM_BACKOFF_FLOOR_MS" default:"1000"`
	BackoffCeilMS   int    `envconfig:"STREAM_BACKOFF_CEILING_MS" default:"0"`
	EventBufferSize int    `envconfig:"STREAM_EVENT_BUFFER_SIZE" default:"256"`

	// Rule queries pushed to the upstream filter before the stream opens.
	// LocationQueries maps a location name to its query, e.g.
	// "chennai:flood chennai,madurai:flood madurai".
	BoundingBoxQuery string            `envconfig:"STREAM_RULE_BOUNDINGBOX_QUERY" required:"true"`
	AddressedQuery   string            `envconfig:"STREAM_RULE_ADDRESSED_QUERY" required:"true"`
	LocationQueries  map[string]string `envconfig:"STREAM_RULE_LOCATION_QUERIES"`
}

// Postgres holds the report store settings.
type Postgres struct {
	URL string `envconfig:"POSTGRES_URL" required:"true"`
}

// ClickHouse holds the raw event archive settings.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Notifier holds the outbound reply settings.
type Notifier struct {
	URL         string `envconfig:"NOTIFIER_URL" required:"true"`
	AuthToken   string `envconfig:"NOTIFIER_AUTH_TOKEN" default:""`
	SendEnabled bool   `envconfig:"NOTIFIER_SEND_ENABLED" default:"false"`
	TimeoutSec  int    `envconfig:"NOTIFIER_TIMEOUT_SEC" default:"15"`
}

// Messages holds the localized reply text catalog settings.
type Messages struct {
	Path            string `envconfig:"MESSAGES_PATH" required:"true"`
	DefaultLanguage string `envconfig:"MESSAGES_DEFAULT_LANGUAGE" default:"en"`
}

// Pipeline holds the classification/archive stage settings.
type Pipeline struct {
	Workers                int `envconfig:"PIPELINE_WORKERS" default:"4"`
	ArchiveBatchSizeMax    int `envconfig:"ARCHIVE_BATCH_SIZE_MAX" default:"500"`
	ArchiveFlushTimeoutSec int `envconfig:"ARCHIVE_FLUSH_TIMEOUT_SEC" default:"10"`
	ArchiveBufferSize      int `envconfig:"ARCHIVE_BUFFER_SIZE" default:"256"`
}

type Config struct {
	Service    Service
	Stream     Stream
	Postgres   Postgres
	ClickHouse ClickHouse
	Notifier   Notifier
	Messages   Messages
	Pipeline   Pipeline
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
