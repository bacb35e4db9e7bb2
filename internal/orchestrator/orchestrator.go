// Package orchestrator executes the side-effect pipeline for each classified
// event: persistence, outbound replies and invitee tracking, with the
// ordering dependencies between them.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/classifier"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/messages"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/notify"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/repository"
)

// MessageResolver resolves localized reply text for a category
type MessageResolver interface {
	Resolve(category, language string) (string, error)
}

// Orchestrator routes each event through its verdict's pipeline
type Orchestrator struct {
	store    repository.ReportStore
	notifier notify.Notifier
	messages MessageResolver
	log      *zap.Logger
}

// New creates a new orchestrator
func New(store repository.ReportStore, notifier notify.Notifier, resolver MessageResolver, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		notifier: notifier,
		messages: resolver,
		log:      log,
	}
}

// Process classifies the event and runs the matching pipeline. Persistence
// and notification failures are logged and contained; they never propagate
// past their dependent steps. The verdict is returned for instrumentation.
func (o *Orchestrator) Process(ctx context.Context, ev *domain.StreamEvent) classifier.Verdict {
	verdict, facts := classifier.Classify(ev)

	switch verdict {
	case classifier.VerdictConfirmed:
		o.handleConfirmed(ctx, ev)
	case classifier.VerdictAskForGeo:
		o.handleAskForGeo(ctx, ev)
	case classifier.VerdictUnconfirmed:
		o.handleUnconfirmed(ctx, ev)
	case classifier.VerdictInvite:
		o.inviteFlow(ctx, ev)
	case classifier.VerdictUnmatched:
		// A warning, not an error: the provisioned rules matched an
		// event the verdict table has no row for.
		o.log.Warn("Event matched no verdict",
			zap.String("author", ev.AuthorHandle),
			zap.Strings("tags", ev.MatchedTags),
			zap.String("body", ev.Text),
			zap.Bool("has_geo", facts.HasGeo))
	}

	return verdict
}

// handleConfirmed persists the confirmed report and, only if that insert
// succeeded, upserts the reporter. The nesting is deliberate: the reporter
// record counts successfully stored reports.
func (o *Orchestrator) handleConfirmed(ctx context.Context, ev *domain.StreamEvent) {
	if err := o.store.InsertConfirmedReport(ctx, ev); err != nil {
		o.log.Error("Failed to insert confirmed report",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle),
			zap.String("body", ev.Text))
		return
	}

	if err := o.store.UpsertReporter(ctx, ev.AuthorHandle); err != nil {
		o.log.Error("Failed to upsert reporter",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
	}

	o.log.Info("Confirmed report stored", zap.String("author", ev.AuthorHandle))
}

// handleAskForGeo stores the non-spatial report and reporter, then asks the
// author for coordinates. The reply does not wait on persistence: a failed
// insert still gets the author asked for geo.
func (o *Orchestrator) handleAskForGeo(ctx context.Context, ev *domain.StreamEvent) {
	if err := o.store.InsertNonSpatialReport(ctx, ev); err != nil {
		o.log.Error("Failed to insert nonspatial report",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle),
			zap.String("body", ev.Text))
	}

	known, err := o.store.ReporterKnown(ctx, ev.AuthorHandle)
	switch {
	case err != nil:
		o.log.Error("Failed to check reporter",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
	case !known:
		if err := o.store.InsertNonSpatialReporter(ctx, ev.AuthorHandle); err != nil {
			o.log.Error("Failed to insert nonspatial reporter",
				zap.Error(err),
				zap.String("author", ev.AuthorHandle))
		}
	}

	text := o.resolveText(messages.CategoryAskForGeo, ev)
	if err := o.notifier.SendReply(ctx, ev.AuthorHandle, text); err != nil {
		o.log.Error("Failed to send geo request",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
	}
}

// handleUnconfirmed stores the unconfirmed report and runs the invitation
// flow. The report insert is fire-and-forget with respect to the invitation.
func (o *Orchestrator) handleUnconfirmed(ctx context.Context, ev *domain.StreamEvent) {
	if err := o.store.InsertUnconfirmedReport(ctx, ev); err != nil {
		o.log.Error("Failed to insert unconfirmed report",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
	}

	o.inviteFlow(ctx, ev)
}

// inviteFlow sends a participation invitation to an author not yet known to
// the system, recording the invitee only after the reply was confirmed
// dispatched. A failed send means no invitee record.
func (o *Orchestrator) inviteFlow(ctx context.Context, ev *domain.StreamEvent) {
	known, err := o.store.ReporterKnown(ctx, ev.AuthorHandle)
	if err != nil {
		o.log.Error("Failed to check reporter",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
		return
	}
	if known {
		o.log.Debug("Author already participating, no invitation",
			zap.String("author", ev.AuthorHandle))
		return
	}

	text := o.resolveText(messages.CategoryInvite, ev)
	if err := o.notifier.SendReply(ctx, ev.AuthorHandle, text); err != nil {
		o.log.Error("Failed to send invitation",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
		return
	}

	if err := o.store.InsertInvitee(ctx, ev.AuthorHandle); err != nil {
		o.log.Error("Failed to insert invitee",
			zap.Error(err),
			zap.String("author", ev.AuthorHandle))
		return
	}

	o.log.Info("Invitation sent", zap.String("author", ev.AuthorHandle))
}

// resolveText looks up the reply text for the event's language. An
// unresolved lookup is logged and the reply proceeds with an empty body.
// TODO: decide whether to suppress the reply entirely when no text resolves.
func (o *Orchestrator) resolveText(category string, ev *domain.StreamEvent) string {
	text, err := o.messages.Resolve(category, ev.Language)
	if err != nil {
		o.log.Warn("Failed to resolve reply text",
			zap.Error(err),
			zap.String("category", category),
			zap.String("language", ev.Language))
	}
	return text
}
