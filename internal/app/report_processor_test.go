package app_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/require"
)

// MockBroadcaster implements the Broadcaster interface for testing
type MockBroadcaster struct {
	broadcasts []*dto.ReportDTO
	mu         sync.Mutex
}

func (b *MockBroadcaster) BroadcastReport(report *dto.ReportDTO) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, report)
}

func (b *MockBroadcaster) Handler() http.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) {}
}

func (b *MockBroadcaster) GetBroadcasts() []*dto.ReportDTO {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*dto.ReportDTO(nil), b.broadcasts...)
}

type chanConsumer struct {
	ch        chan *dto.ReportDTO
	mu        sync.Mutex
	committed []string
}

func (c *chanConsumer) Subscribe(context.Context) (<-chan *dto.ReportDTO, error) {
	return c.ch, nil
}

func (c *chanConsumer) Commit(_ context.Context, report *dto.ReportDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, report.RunID)
	return nil
}

func (c *chanConsumer) Close() error { return nil }

func (c *chanConsumer) Committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.committed...)
}

func TestReportProcessor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &chanConsumer{ch: make(chan *dto.ReportDTO, 4)}
	cache := newMemoryCache()
	broadcaster := &MockBroadcaster{}
	processor := app.NewReportProcessor(slogdiscard.NewDiscardLogger(), consumer, cache, broadcaster)

	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx) }()

	consumer.ch <- &dto.ReportDTO{RunID: "run-1", Source: "kalshi"}
	consumer.ch <- &dto.ReportDTO{RunID: "run-1", Source: "kalshi"} // redelivery
	consumer.ch <- &dto.ReportDTO{RunID: "run-2", Source: "kalshi"}

	require.Eventually(t, func() bool { return len(consumer.Committed()) == 3 }, time.Second, 10*time.Millisecond)

	broadcasts := broadcaster.GetBroadcasts()
	require.Len(t, broadcasts, 2)
	require.Equal(t, "run-2", broadcasts[1].RunID)

	cached, err := cache.GetReport(ctx, "kalshi")
	require.NoError(t, err)
	require.Equal(t, "run-2", cached.RunID)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestReportProcessorStopsWhenChannelCloses(t *testing.T) {
	consumer := &chanConsumer{ch: make(chan *dto.ReportDTO)}
	processor := app.NewReportProcessor(slogdiscard.NewDiscardLogger(), consumer, nil, &MockBroadcaster{})
	close(consumer.ch)

	require.NoError(t, processor.Run(context.Background()))
}
