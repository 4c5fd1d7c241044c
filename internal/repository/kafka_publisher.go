package repository

import (
	"context"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	pkgkafka "NiftyPulse/pkg/kafka"
)

type KafkaTopics struct {
	Bars    string
	Intents string
	Events  string
	Logs    string
}

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// ticker so each instrument stays ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topics   KafkaTopics
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topics KafkaTopics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topics: topics}
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, venue string, interval domrepo.Interval, b models.Bar) error {
	return p.producer.Publish(ctx, p.topics.Bars, []byte(b.Symbol), models.BarMessage{
		Ticker:   b.Symbol,
		Venue:    venue,
		Interval: string(interval),
		Bar:      b,
	})
}

func (p *KafkaPublisher) PublishIntent(ctx context.Context, intent models.TradeIntent) error {
	return p.producer.Publish(ctx, p.topics.Intents, []byte(intent.Instrument), intent)
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, ev *models.MarketEvent) error {
	return p.producer.Publish(ctx, p.topics.Events, []byte(ev.Symbol), ev)
}

// PublishMessage lets the log collector ship aggregated errors.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	if topic == "" {
		topic = p.topics.Logs
	}
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
