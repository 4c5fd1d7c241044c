package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, default 30s
	CountThreshold int           // distinct entries that force a flush, default 100
	Topic          string
	Publisher      Publisher
	// MinLevel is "warn" or "error" (default).
	MinLevel string
	Service  string
}

// AggregatedLogEntry is one distinct level+message+caller with the fields
// of its first occurrence.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on each flush.
type LogBatch struct {
	Service string               `json:"service,omitempty"`
	Host    string               `json:"host,omitempty"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// LogCollector deduplicates warn/error entries and ships them in batches,
// so a failing upstream produces one record with a count instead of a flood.
type LogCollector struct {
	config *CollectionConfig
	host   string
	logMap map[uint64]*AggregatedLogEntry
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	if config.MinLevel == "" {
		config.MinLevel = "error"
	}
	host, _ := os.Hostname()
	ctx, cancel := context.WithCancel(context.Background())

	c := &LogCollector{
		config: config,
		host:   host,
		logMap: make(map[uint64]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	c.wg.Add(1)
	go c.periodicFlush()
	return c
}

func (d *LogCollector) accepts(level string) bool {
	return level == "error" || (level == "warn" && d.config.MinLevel == "warn")
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	if !d.accepts(level) {
		return
	}
	now := d.now()
	key := entryKey(level, message, caller)

	d.mutex.Lock()
	if entry, ok := d.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []AggregatedLogEntry
	if len(d.logMap) >= d.config.CountThreshold {
		batch = d.take()
	}
	d.mutex.Unlock()

	if batch != nil {
		go d.publish(batch)
	}
}

// entryKey ignores fields: the same failure across tickers aggregates.
func entryKey(level, message, caller string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(level))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(message))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(caller))
	return h.Sum64()
}

// take empties the map. Caller holds the mutex.
func (d *LogCollector) take() []AggregatedLogEntry {
	if len(d.logMap) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, e := range d.logMap {
		out = append(out, *e)
	}
	d.logMap = make(map[uint64]*AggregatedLogEntry)
	return out
}

func (d *LogCollector) flush() {
	d.mutex.Lock()
	batch := d.take()
	d.mutex.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

func (d *LogCollector) publish(entries []AggregatedLogEntry) {
	if d.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	batch := LogBatch{Service: d.config.Service, Host: d.host, Entries: entries}
	if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "log collector: publish failed: %v\n", err)
	}
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.flush()
		case <-d.ctx.Done():
			return
		}
	}
}

// Close stops the flush loop and publishes what is pending synchronously.
func (d *LogCollector) Close() {
	d.cancel()
	d.wg.Wait()
	d.flush()
}
