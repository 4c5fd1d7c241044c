package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func TestCollectorAggregatesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub, Service: "test"})

	for i := 0; i < 3; i++ {
		l.Error("chain fetch failed", String("symbol", "NIFTY"), Error(errors.New("timeout")))
	}
	l.Warn("ignored at error level")
	l.Info("never collected")
	l.RemoveCollector()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	b := pub.batches[0]
	assert.Equal(t, "test", b.Service)
	require.Len(t, b.Entries, 1)
	assert.Equal(t, 3, b.Entries[0].Count)
	assert.Equal(t, "timeout", b.Entries[0].Fields["error"])
}

func TestCollectorWarnLevel(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub, MinLevel: "warn"})
	c.AddLog("warn", "slow", nil, "a.go:1")
	c.AddLog("error", "down", nil, "a.go:2")
	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0].Entries, 2)
}

func TestNilErrorFieldDoesNotPanic(t *testing.T) {
	k, v := Error(nil).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Nil(t, v)
}
