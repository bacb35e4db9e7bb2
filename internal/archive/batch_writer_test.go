package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
)

// MockArchiver is a mock implementation of Archiver
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

func testEvent(handle string) *domain.StreamEvent {
	return &domain.StreamEvent{
		AuthorHandle: handle,
		PostedAt:     time.Now(),
		Text:         "flooding",
	}
}

func TestBatchWriter_FlushOnSizeThreshold(t *testing.T) {
	archiver := new(MockArchiver)
	m := metrics.New(prometheus.NewRegistry())

	writer := NewBatchWriter(archiver, BatchWriterConfig{
		MaxBatchSize: 3,
		FlushTimeout: 10 * time.Second,
	}, m, zap.NewNop())

	archiver.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []*domain.StreamEvent) bool {
		return len(events) == 3
	})).Return(3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *domain.StreamEvent, 5)
	go writer.Start(ctx, in)

	in <- testEvent("a")
	in <- testEvent("b")
	in <- testEvent("c")

	time.Sleep(100 * time.Millisecond)

	archiver.AssertExpectations(t)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ArchiveWritten))
}

func TestBatchWriter_FlushOnTimeout(t *testing.T) {
	archiver := new(MockArchiver)
	m := metrics.New(prometheus.NewRegistry())

	writer := NewBatchWriter(archiver, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 50 * time.Millisecond,
	}, m, zap.NewNop())

	archiver.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []*domain.StreamEvent) bool {
		return len(events) == 2
	})).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *domain.StreamEvent, 5)
	go writer.Start(ctx, in)

	in <- testEvent("a")
	in <- testEvent("b")

	time.Sleep(150 * time.Millisecond)

	archiver.AssertExpectations(t)
}

func TestBatchWriter_FinalFlushOnChannelClose(t *testing.T) {
	archiver := new(MockArchiver)
	m := metrics.New(prometheus.NewRegistry())

	writer := NewBatchWriter(archiver, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 10 * time.Second,
	}, m, zap.NewNop())

	archiver.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []*domain.StreamEvent) bool {
		return len(events) == 1
	})).Return(1, nil)

	in := make(chan *domain.StreamEvent, 5)
	done := make(chan struct{})
	go func() {
		writer.Start(context.Background(), in)
		close(done)
	}()

	in <- testEvent("a")
	close(in)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not stop after channel close")
	}

	archiver.AssertExpectations(t)
}

func TestBatchWriter_InsertFailureIsDropped(t *testing.T) {
	archiver := new(MockArchiver)
	m := metrics.New(prometheus.NewRegistry())

	writer := NewBatchWriter(archiver, BatchWriterConfig{
		MaxBatchSize: 2,
		FlushTimeout: 10 * time.Second,
	}, m, zap.NewNop())

	archiver.On("InsertBatch", mock.Anything, mock.Anything).Return(0, errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *domain.StreamEvent, 5)
	go writer.Start(ctx, in)

	in <- testEvent("a")
	in <- testEvent("b")

	time.Sleep(100 * time.Millisecond)

	archiver.AssertExpectations(t)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ArchiveDropped))
	assert.Zero(t, testutil.ToFloat64(m.ArchiveWritten))
}
