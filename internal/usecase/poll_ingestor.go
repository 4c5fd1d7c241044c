package usecase

import (
	"context"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// Dispatcher runs an event through the handler chain.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.MarketEvent) int
}

// Builder produces at most one event per call for a ticker.
type Builder interface {
	Build(ctx context.Context, ticker string) (*models.MarketEvent, error)
}

type IngestOptions struct {
	PollInterval time.Duration
	RunDuration  time.Duration // 0 runs until ctx is done
	CycleTimeout time.Duration
	QueueSize    int
	Retry        RetryPolicy
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.CycleTimeout <= 0 {
		o.CycleTimeout = 8 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 1
	}
	return o
}

// cycle builds and dispatches one ticker under a timeout and retry policy.
// Failures are logged and counted; they never escape to the caller.
func cycle(ctx context.Context, opts IngestOptions, builder Builder, disp Dispatcher,
	metrics drepo.Metrics, logger *applogger.Logger, mode, ticker string) {
	cctx, cancel := context.WithTimeout(ctx, opts.CycleTimeout)
	defer cancel()

	var ev *models.MarketEvent
	err := opts.Retry.Do(cctx, func(ctx context.Context) error {
		var err error
		ev, err = builder.Build(ctx, ticker)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordError(mode + "_cycle")
		logger.Error("cycle failed",
			applogger.String("mode", mode),
			applogger.String("symbol", ticker),
			applogger.Bool("retriable", IsRetriable(err)),
			applogger.Error(err))
		return
	}
	if ev == nil {
		return
	}
	logger.Info("market update",
		applogger.String("mode", mode),
		applogger.String("symbol", ticker),
		applogger.Int64("bar_ts", ev.Timestamp),
		applogger.Float64("close", ev.Bar.Close),
		applogger.Float64("net_vol_rsi", ev.Sentiment.NetVolRSI),
		applogger.String("regime", string(ev.Sentiment.Regime)),
		applogger.String("structure", string(ev.Structure.Regime)))
	disp.Dispatch(cctx, ev)
}

// PollingIngestor walks every instrument on a fixed period.
type PollingIngestor struct {
	resolver drepo.SymbolResolver
	builder  Builder
	disp     Dispatcher
	metrics  drepo.Metrics
	logger   *applogger.Logger
	opts     IngestOptions
}

func NewPollingIngestor(resolver drepo.SymbolResolver, builder Builder, disp Dispatcher,
	metrics drepo.Metrics, logger *applogger.Logger, opts IngestOptions) *PollingIngestor {
	return &PollingIngestor{
		resolver: resolver,
		builder:  builder,
		disp:     disp,
		metrics:  metrics,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

func (p *PollingIngestor) Name() string { return "poll" }

// Run blocks until ctx is done or the run duration elapses.
func (p *PollingIngestor) Run(ctx context.Context) error {
	if p.opts.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunDuration)
		defer cancel()
	}
	p.logger.Info("polling ingestion started",
		applogger.Strings("symbols", p.resolver.Tickers()),
		applogger.Duration("interval_ms", p.opts.PollInterval))

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("polling ingestion stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *PollingIngestor) pollOnce(ctx context.Context) {
	for _, t := range p.resolver.Tickers() {
		if ctx.Err() != nil {
			return
		}
		cycle(ctx, p.opts, p.builder, p.disp, p.metrics, p.logger, "poll", t)
	}
}
