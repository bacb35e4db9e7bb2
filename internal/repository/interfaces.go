package repository

import (
	"context"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// ReportStore defines the persistence operations of the report pipeline.
// Author handles are stored content-addressed (hashed), never in the clear.
type ReportStore interface {
	// InsertConfirmedReport persists a geo-located, addressed report.
	InsertConfirmedReport(ctx context.Context, ev *domain.StreamEvent) error

	// InsertUnconfirmedReport persists a geo-located report that was not
	// addressed to the operating account.
	InsertUnconfirmedReport(ctx context.Context, ev *domain.StreamEvent) error

	// InsertNonSpatialReport persists a report without coordinates.
	InsertNonSpatialReport(ctx context.Context, ev *domain.StreamEvent) error

	// UpsertReporter records a confirmed-report author, incrementing the
	// report count if the author is already known.
	UpsertReporter(ctx context.Context, handle string) error

	// ReporterKnown checks the author's hash against the set of all known
	// participants (reporters, non-spatial reporters and invitees).
	ReporterKnown(ctx context.Context, handle string) (bool, error)

	// InsertNonSpatialReporter records the author of a non-spatial report.
	InsertNonSpatialReporter(ctx context.Context, handle string) error

	// InsertInvitee records that the author was sent an invitation. Callers
	// must only invoke this after the invitation was confirmed dispatched.
	InsertInvitee(ctx context.Context, handle string) error

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close()
}
