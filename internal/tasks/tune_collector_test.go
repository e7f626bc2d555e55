package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atc_trmnl/internal/models"
)

// mockRepository is a simple mock implementation of database.TuneEventRepository
type mockRepository struct {
	mu      sync.Mutex
	events  []*models.TuneEvent
	batches int
	errors  []error
}

func (m *mockRepository) InsertBatch(events []*models.TuneEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	m.batches++
	if len(m.errors) > 0 {
		err := m.errors[0]
		m.errors = m.errors[1:]
		return err
	}
	return nil
}

func (m *mockRepository) Recent(limit int) ([]*models.TuneEvent, error) {
	return nil, nil
}

func (m *mockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func testEvent() *models.TuneEvent {
	return models.NewTuneEvent(models.TuneActionJoin, "121.505", models.Position{})
}

func TestNewTuneCollector(t *testing.T) {
	collector := NewTuneCollector(&mockRepository{})

	require.NotNil(t, collector)
	assert.Equal(t, 20, collector.batchSize)
	assert.Equal(t, 5*time.Second, collector.flushInterval)
}

func TestNewTuneCollectorWithConfig(t *testing.T) {
	collector := NewTuneCollectorWithConfig(&mockRepository{}, 50, 500*time.Millisecond)

	require.NotNil(t, collector)
	assert.Equal(t, 50, collector.batchSize)
	assert.Equal(t, 500*time.Millisecond, collector.flushInterval)

	collector = NewTuneCollectorWithConfig(&mockRepository{}, 0, time.Second)
	assert.Equal(t, 1, collector.batchSize)
}

func TestTuneCollector_BatchFlush(t *testing.T) {
	repo := &mockRepository{}
	batchSize := 5
	collector := NewTuneCollectorWithConfig(repo, batchSize, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = collector.Start(ctx)
	}()

	for i := 0; i < batchSize; i++ {
		require.NoError(t, collector.Publish(testEvent()))
	}

	assert.Eventually(t, func() bool { return repo.count() == batchSize }, time.Second, 10*time.Millisecond)
}

func TestTuneCollector_TimeoutFlush(t *testing.T) {
	repo := &mockRepository{}
	collector := NewTuneCollectorWithConfig(repo, 10, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = collector.Start(ctx)
	}()

	// a single event is flushed by the ticker, not by the batch size
	require.NoError(t, collector.Publish(testEvent()))

	assert.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestTuneCollector_ContextCancellation(t *testing.T) {
	repo := &mockRepository{}
	collector := NewTuneCollectorWithConfig(repo, 10, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_ = collector.Start(ctx)
		close(done)
	}()

	require.NoError(t, collector.Publish(testEvent()))
	require.NoError(t, collector.Publish(testEvent()))
	cancel()

	select {
	case <-done:
		// pending events are flushed on the way out
		assert.Equal(t, 2, repo.count())
	case <-time.After(2 * time.Second):
		t.Fatal("Collector did not exit after context cancellation")
	}
}

func TestTuneCollector_QueueFull(t *testing.T) {
	collector := NewTuneCollectorWithConfig(&mockRepository{}, 1, time.Hour)

	// not started, so nothing drains the queue
	for i := 0; i < cap(collector.events); i++ {
		require.NoError(t, collector.Publish(testEvent()))
	}
	assert.ErrorIs(t, collector.Publish(testEvent()), ErrQueueFull)
}

func TestTuneCollector_InsertError(t *testing.T) {
	repo := &mockRepository{
		errors: []error{assert.AnError},
	}
	batchSize := 2
	collector := NewTuneCollectorWithConfig(repo, batchSize, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = collector.Start(ctx)
	}()

	// first batch fails, the collector keeps going with the second
	for i := 0; i < 2*batchSize; i++ {
		require.NoError(t, collector.Publish(testEvent()))
	}

	assert.Eventually(t, func() bool { return repo.count() == 2*batchSize }, time.Second, 10*time.Millisecond)
}
