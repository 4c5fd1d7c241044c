package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	pkgkafka "NiftyPulse/pkg/kafka"
)

// KafkaBarsHandler consumes the bars topic and writes to the bar store.
type KafkaBarsHandler struct {
	topic   string
	store   domrepo.BarStore
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, store domrepo.BarStore, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// Handle expects a models.BarMessage.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.BarMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Ticker == "" {
		m.Ticker = m.Bar.Symbol
	}
	if err := m.Bar.Validate(); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("invalid bar message: %w", err)
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(m.Bar.Time()).Seconds())

	start := time.Now()
	err := h.store.StoreBar(ctx, m.Ticker, m.Venue, domrepo.NormalizeInterval(m.Interval), m.Bar)
	h.metrics.RecordLatency("store_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
