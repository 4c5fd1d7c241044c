package kafka

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "NiftyPulse/pkg/logger"
)

// MessageHandler handles records from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerConfig holds reader, worker and retry settings.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
	Logger     *applogger.Logger
}

type ConsumerOption func(*ConsumerConfig)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerWorkers sets the worker count. Records of one partition
// always land on the same worker.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ routes records that exhaust their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the per-worker queue length.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer fans records from one reader per topic out to a fixed worker
// pool. Offsets are committed after the handler succeeds, or after the
// record was parked on the DLQ.
type Consumer struct {
	cfg      ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	queues   []chan kafka.Message
	dlq      *kafka.Writer
	hook     ConsumerHook

	cancel   context.CancelFunc
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		GroupID:    "niftypulse",
		Workers:    1,
		BufferSize: 64,
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   10e3,
		MaxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.Hash{},
		}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler binds handler to its topic. A second handler for the same
// topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.cfg.Logger.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs lifecycle hooks around every handler call.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.queues = make([]chan kafka.Message, c.cfg.Workers)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, c.cfg.BufferSize)
		c.workWG.Add(1)
		go c.work(ctx, c.queues[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.readWG.Add(1)
		go c.read(ctx, topic, r)
	}
	c.cfg.Logger.Info("kafka consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.Workers),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop cancels the readers, drains the worker queues and closes every
// reader and the DLQ writer.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.readWG.Wait()
		for _, q := range c.queues {
			close(q)
		}

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.cfg.Logger.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.cfg.Logger.Warn("kafka dlq close failed", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.cfg.Logger.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) read(ctx context.Context, topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.cfg.Logger.Error("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		q := c.queues[workerFor(km.Partition, len(c.queues))]
		select {
		case q <- km:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context, q <-chan kafka.Message) {
	defer c.workWG.Done()
	for km := range q {
		c.process(ctx, km)
	}
}

func (c *Consumer) process(ctx context.Context, km kafka.Message) {
	start := time.Now()
	handler := c.handlers[km.Topic]
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("kafka handler panic", applogger.String("topic", km.Topic), applogger.Any("panic", r))
			consumerHandled.WithLabelValues(km.Topic, "panic").Inc()
		}
	}()

	if !acceptsJSON(km.Headers) {
		consumerHandled.WithLabelValues(km.Topic, "skipped").Inc()
		c.commit(km)
		return
	}

	var err error
	attempts := 0
	for {
		attempts++
		err = c.handleOnce(handler, km)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(context.Background(), km.Topic, km, err)
		// Stop abandons the retry; the uncommitted offset is redelivered.
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return
		}
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.cfg.Logger.Error("kafka handler failed",
			applogger.String("topic", km.Topic),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		if !c.park(km, err) {
			consumerHandled.WithLabelValues(km.Topic, result).Inc()
			return
		}
		result = "dlq"
	}
	c.commit(km)
	consumerHandled.WithLabelValues(km.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleOnce(handler MessageHandler, km kafka.Message) error {
	hctx, data, err := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(hctx, data)
	c.hook.AfterHandle(hctx, km.Topic, km, err)
	return err
}

// park writes km to the DLQ. It reports whether the record may be
// committed.
func (c *Consumer) park(km kafka.Message, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: append(km.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(km.Topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())}),
	})
	if err != nil {
		c.cfg.Logger.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(km kafka.Message) {
	r := c.readers[km.Topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.cfg.Logger.Error("kafka commit failed",
		applogger.String("topic", km.Topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
		applogger.Error(err))
}

func workerFor(partition, workers int) int {
	if workers <= 1 || partition < 0 {
		return 0
	}
	return partition % workers
}

// acceptsJSON is true when the record carries no content type or a JSON one.
func acceptsJSON(headers []kafka.Header) bool {
	for _, h := range headers {
		if h.Key == ContentTypeHeader {
			return bytes.Equal(h.Value, []byte("application/json"))
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffWithJitter doubles from min up to max and shaves up to half off.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 31 && min<<uint(attempt-1) < max {
		exp = min << uint(attempt-1)
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niftypulse_kafka_consumer_queue_depth",
			Help: "Records waiting in a worker queue",
		}, []string{"topic"})
		consumerHandled = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "niftypulse_kafka_consumer_records_total",
			Help: "Records handled by outcome",
		}, []string{"topic", "result"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "niftypulse_kafka_consumer_handle_seconds",
			Help:    "Handling time per record",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
