package usecase

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// LiveIngestor turns feed minute boundaries into build+dispatch cycles. The
// feed goroutine only detects boundaries; a single processing goroutine owns
// every state mutation.
type LiveIngestor struct {
	feed     drepo.MarketFeed
	resolver drepo.SymbolResolver
	builder  Builder
	disp     Dispatcher
	metrics  drepo.Metrics
	logger   *applogger.Logger
	opts     IngestOptions
	keys     []string

	minutes *Gate
	queue   chan string
}

func NewLiveIngestor(feed drepo.MarketFeed, resolver drepo.SymbolResolver, builder Builder, disp Dispatcher,
	metrics drepo.Metrics, logger *applogger.Logger, opts IngestOptions, extraKeys []string) *LiveIngestor {
	opts = opts.withDefaults()
	var keys []string
	for _, t := range resolver.Tickers() {
		if k, ok := resolver.KeyForTicker(t); ok {
			keys = append(keys, k)
		}
	}
	keys = append(keys, extraKeys...)
	return &LiveIngestor{
		feed:     feed,
		resolver: resolver,
		builder:  builder,
		disp:     disp,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		keys:     keys,
		minutes:  NewGate(WithSuppressFirst(true)),
		queue:    make(chan string, opts.QueueSize),
	}
}

func (l *LiveIngestor) Name() string { return "live" }

// Run connects the feed and blocks until ctx is done or the run duration
// elapses.
func (l *LiveIngestor) Run(ctx context.Context) error {
	if l.opts.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.RunDuration)
		defer cancel()
	}
	if err := l.feed.Connect(ctx); err != nil {
		return fmt.Errorf("live: connect: %w", err)
	}
	if err := l.feed.Subscribe(ctx, l.keys); err != nil {
		_ = l.feed.Close()
		return fmt.Errorf("live: subscribe: %w", err)
	}
	l.logger.Info("live ingestion started", applogger.Strings("keys", l.keys))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.process(ctx)
	}()

	ticks, errs := l.feed.Read(ctx)
	l.consume(ctx, ticks, errs)
	stop()
	<-done
	_ = l.feed.Close()
	l.logger.Info("live ingestion stopped")
	return nil
}

func (l *LiveIngestor) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			l.metrics.RecordError("feed")
			l.logger.Warn("feed error, reconnecting", applogger.Error(err))
			if !l.recoverFeed(ctx) {
				return
			}
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if t != nil {
				l.OnTick(t)
			}
		}
	}
}

// maxReconnectBackoff caps the wait between reconnect attempts.
const maxReconnectBackoff = 30 * time.Second

// recoverFeed reconnects and resubscribes until both succeed. It returns
// false only when ctx is done.
func (l *LiveIngestor) recoverFeed(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := l.feed.Reconnect(ctx)
		if err == nil {
			if err = l.feed.Subscribe(ctx, l.keys); err != nil {
				err = fmt.Errorf("resubscribe: %w", err)
			}
		}
		if err == nil {
			l.logger.Info("feed recovered", applogger.Int("attempts", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait := backoffWithJitter(l.opts.Retry.MinBackoff, maxReconnectBackoff, attempt)
		l.metrics.RecordError("feed_reconnect")
		l.logger.Error("feed reconnect failed",
			applogger.Int("attempt", attempt),
			applogger.Duration("retry_in", wait),
			applogger.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// OnTick applies the minute gate and hands a new bar boundary to the
// processor. It never blocks: a full queue drops the notification.
func (l *LiveIngestor) OnTick(t *models.Tick) {
	ticker, ok := l.resolver.TickerForKey(t.InstrumentKey)
	if !ok {
		return
	}
	if !l.minutes.Admit(ticker, t.BarTimestamp) {
		return
	}
	select {
	case l.queue <- ticker:
	default:
		l.metrics.RecordError("live_queue_full")
		l.logger.Warn("live queue full, dropping boundary",
			applogger.String("symbol", ticker),
			applogger.Int64("minute", t.BarTimestamp))
	}
}

func (l *LiveIngestor) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ticker := <-l.queue:
			start := time.Now()
			cycle(ctx, l.opts, l.builder, l.disp, l.metrics, l.logger, "live", ticker)
			l.metrics.RecordLatency("live_cycle", time.Since(start).Seconds())
		}
	}
}
