package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NiftyPulse/internal/domain/models"
	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/metrics"
)

type chanFeed struct {
	mu         sync.Mutex
	ticks      chan *models.Tick
	errs       chan error
	subscribed []string
	reconnects int
}

func newChanFeed() *chanFeed {
	return &chanFeed{ticks: make(chan *models.Tick, 16), errs: make(chan error, 1)}
}

func (f *chanFeed) Connect(context.Context) error { return nil }
func (f *chanFeed) Subscribe(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = keys
	return nil
}
func (f *chanFeed) Read(context.Context) (<-chan *models.Tick, <-chan error) { return f.ticks, f.errs }
func (f *chanFeed) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}
func (f *chanFeed) Close() error      { return nil }
func (f *chanFeed) IsConnected() bool { return true }

// countingBuilder records calls and never emits.
type countingBuilder struct {
	mu    sync.Mutex
	calls []string
}

func (b *countingBuilder) Build(_ context.Context, ticker string) (*models.MarketEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, ticker)
	return nil, nil
}

func (b *countingBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func TestLiveOnTickMinuteGate(t *testing.T) {
	b := &countingBuilder{}
	l := NewLiveIngestor(newChanFeed(), newResolver(), b, &captureDispatcher{}, metrics.Nop{}, applogger.Nop(),
		IngestOptions{QueueSize: 8}, nil)

	key := "NSE_INDEX|Nifty 50"
	l.OnTick(&models.Tick{InstrumentKey: key, BarTimestamp: 60})
	l.OnTick(&models.Tick{InstrumentKey: key, BarTimestamp: 60})
	l.OnTick(&models.Tick{InstrumentKey: key, BarTimestamp: 120})
	l.OnTick(&models.Tick{InstrumentKey: key, BarTimestamp: 120})
	l.OnTick(&models.Tick{InstrumentKey: "NSE_FO|12345", BarTimestamp: 180})

	require.Len(t, l.queue, 1)
	assert.Equal(t, "NIFTY", <-l.queue)
}

func TestLiveOnTickDropsWhenQueueFull(t *testing.T) {
	l := NewLiveIngestor(newChanFeed(), newResolver(), &countingBuilder{}, &captureDispatcher{}, metrics.Nop{}, applogger.Nop(),
		IngestOptions{QueueSize: 1}, nil)
	key := "NSE_INDEX|Nifty 50"
	for ts := int64(60); ts <= 300; ts += 60 {
		l.OnTick(&models.Tick{InstrumentKey: key, BarTimestamp: ts})
	}
	assert.Len(t, l.queue, 1)
}

func TestLiveRunProcessesBoundariesAndReconnects(t *testing.T) {
	feed := newChanFeed()
	b := &countingBuilder{}
	l := NewLiveIngestor(feed, newResolver(), b, &captureDispatcher{}, metrics.Nop{}, applogger.Nop(),
		IngestOptions{QueueSize: 4, CycleTimeout: time.Second}, []string{"NSE_FO|1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	feed.ticks <- &models.Tick{InstrumentKey: "NSE_INDEX|Nifty Bank", BarTimestamp: 60}
	feed.ticks <- &models.Tick{InstrumentKey: "NSE_INDEX|Nifty Bank", BarTimestamp: 120}
	feed.errs <- errors.New("read: connection reset")

	deadline := time.Now().Add(2 * time.Second)
	for b.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("boundary was not processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	assert.Contains(t, feed.subscribed, "NSE_FO|1")
	assert.Contains(t, feed.subscribed, "NSE_INDEX|Nifty 50")
	assert.Equal(t, []string{"BANKNIFTY"}, b.calls)
}
