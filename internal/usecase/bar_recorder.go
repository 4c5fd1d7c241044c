package usecase

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
)

// BarRecorder routes closed bars to the configured backend.
type BarRecorder struct {
	pub      drepo.Publisher
	store    drepo.BarStore
	metrics  drepo.Metrics
	backend  string
	venue    string
	interval drepo.Interval
}

func NewBarRecorder(
	pub drepo.Publisher,
	store drepo.BarStore,
	metrics drepo.Metrics,
	backend string,
	venue string,
	interval drepo.Interval,
) *BarRecorder {
	return &BarRecorder{
		pub:      pub,
		store:    store,
		metrics:  metrics,
		backend:  backend,
		venue:    venue,
		interval: interval,
	}
}

// Process stores one bar. The kafka backend publishes it for KafkaBarsHandler
// to persist.
func (p *BarRecorder) Process(ctx context.Context, ticker string, b models.Bar) error {
	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		if p.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = p.pub.PublishBar(ctx, p.venue, p.interval, b)
	case "clickhouse", "postgres":
		if p.store == nil {
			return fmt.Errorf("%s backend without store", p.backend)
		}
		err = p.store.StoreBar(ctx, ticker, p.venue, p.interval, b)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("store_bar")
		return fmt.Errorf("record bar %s@%d: %w", ticker, b.Timestamp, err)
	}
	p.metrics.RecordLatency("store_bar", time.Since(start).Seconds())
	return nil
}
