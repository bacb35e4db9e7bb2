package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/config"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/orchestrator"
)

// MockReportStore is a mock implementation of repository.ReportStore
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) InsertConfirmedReport(ctx context.Context, ev *domain.StreamEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockReportStore) InsertUnconfirmedReport(ctx context.Context, ev *domain.StreamEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockReportStore) InsertNonSpatialReport(ctx context.Context, ev *domain.StreamEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockReportStore) UpsertReporter(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockReportStore) ReporterKnown(ctx context.Context, handle string) (bool, error) {
	args := m.Called(ctx, handle)
	return args.Bool(0), args.Error(1)
}

func (m *MockReportStore) InsertNonSpatialReporter(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockReportStore) InsertInvitee(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockReportStore) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockReportStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockReportStore) Close() {
	m.Called()
}

// MockNotifier is a mock implementation of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendReply(ctx context.Context, recipient, text string) error {
	args := m.Called(ctx, recipient, text)
	return args.Error(0)
}

// MockResolver is a mock implementation of orchestrator.MessageResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(category, language string) (string, error) {
	args := m.Called(category, language)
	return args.String(0), args.Error(1)
}

// MockArchiver is a mock implementation of archive.Archiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) InsertBatch(ctx context.Context, events []*domain.StreamEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockArchiver) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockArchiver) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockArchiver) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.Pipeline{
			Workers:                2,
			ArchiveBatchSizeMax:    100,
			ArchiveFlushTimeoutSec: 10,
			ArchiveBufferSize:      16,
		},
	}
}

func confirmedEvent(handle string) *domain.StreamEvent {
	return &domain.StreamEvent{
		AuthorHandle: handle,
		PostedAt:     time.Now(),
		Text:         "flooding",
		Language:     "en",
		Geo:          &domain.GeoPoint{Longitude: 80.27, Latitude: 13.08},
		Families: map[domain.RuleFamily]bool{
			domain.FamilyBoundingBox: true,
			domain.FamilyAddressed:   true,
		},
	}
}

func TestPipeline_ProcessesAndArchivesEvents(t *testing.T) {
	store := new(MockReportStore)
	notifier := new(MockNotifier)
	resolver := new(MockResolver)
	archiver := new(MockArchiver)

	store.On("InsertConfirmedReport", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertReporter", mock.Anything, mock.Anything).Return(nil)
	archiver.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []*domain.StreamEvent) bool {
		return len(events) == 2
	})).Return(2, nil)

	m := metrics.New(prometheus.NewRegistry())
	orch := orchestrator.New(store, notifier, resolver, zap.NewNop())
	p := New(testConfig(), orch, archiver, m, zap.NewNop())

	in := make(chan *domain.StreamEvent, 4)
	in <- confirmedEvent("reporter1")
	in <- confirmedEvent("reporter2")
	close(in)

	// Closing the input drains the workers and flushes the final batch.
	err := p.Start(context.Background(), in)
	require.NoError(t, err)

	store.AssertNumberOfCalls(t, "InsertConfirmedReport", 2)
	archiver.AssertExpectations(t)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Verdicts.WithLabelValues("confirmed")))
}

func TestPipeline_UnmatchedEventCountsVerdict(t *testing.T) {
	store := new(MockReportStore)
	notifier := new(MockNotifier)
	resolver := new(MockResolver)
	archiver := new(MockArchiver)

	archiver.On("InsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	m := metrics.New(prometheus.NewRegistry())
	orch := orchestrator.New(store, notifier, resolver, zap.NewNop())
	p := New(testConfig(), orch, archiver, m, zap.NewNop())

	in := make(chan *domain.StreamEvent, 1)
	in <- &domain.StreamEvent{
		AuthorHandle: "reporter1",
		Families:     map[domain.RuleFamily]bool{},
	}
	close(in)

	err := p.Start(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Verdicts.WithLabelValues("unmatched")))
	store.AssertNotCalled(t, "InsertConfirmedReport", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "SendReply", mock.Anything, mock.Anything, mock.Anything)
}
