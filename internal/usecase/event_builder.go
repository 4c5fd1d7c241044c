package usecase

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	dservice "NiftyPulse/internal/domain/service"
	"NiftyPulse/internal/services/oscillator"
	"NiftyPulse/internal/services/regime"
	applogger "NiftyPulse/pkg/logger"
)

// BarSink accepts closed bars for asynchronous persistence.
type BarSink interface {
	Submit(ctx context.Context, ticker string, b models.Bar) bool
}

// EventBuilder turns the latest closed upstream bar of an instrument into an
// enriched MARKET_UPDATE event.
type EventBuilder struct {
	resolver  drepo.SymbolResolver
	intraday  drepo.IntradaySource
	chains    drepo.OptionChainSource
	sentiment drepo.SentimentSource
	osc       dservice.Oscillator
	structure dservice.StructureDetector
	gate      *Gate
	sink      BarSink
	interval  drepo.Interval
	metrics   drepo.Metrics
	logger    *applogger.Logger
}

type BuilderDeps struct {
	Resolver  drepo.SymbolResolver
	Intraday  drepo.IntradaySource
	Chains    drepo.OptionChainSource
	Sentiment drepo.SentimentSource
	Osc       dservice.Oscillator
	Structure dservice.StructureDetector
	Sink      BarSink
	Metrics   drepo.Metrics
	Logger    *applogger.Logger
}

func NewEventBuilder(d BuilderDeps, gate *Gate, interval drepo.Interval) *EventBuilder {
	return &EventBuilder{
		resolver:  d.Resolver,
		intraday:  d.Intraday,
		chains:    d.Chains,
		sentiment: d.Sentiment,
		osc:       d.Osc,
		structure: d.Structure,
		gate:      gate,
		sink:      d.Sink,
		interval:  drepo.NormalizeInterval(string(interval)),
		metrics:   d.Metrics,
		logger:    d.Logger,
	}
}

// Gate exposes the builder's dedup gate.
func (b *EventBuilder) Gate() *Gate { return b.gate }

// Build returns (nil, nil) when there is nothing new to emit. Upstream
// failures leave the gate untouched so the same bar can be retried.
func (b *EventBuilder) Build(ctx context.Context, ticker string) (*models.MarketEvent, error) {
	start := time.Now()
	key, ok := b.resolver.KeyForTicker(ticker)
	if !ok {
		return nil, fmt.Errorf("build %s: unknown ticker", ticker)
	}

	bars, err := b.intraday.IntradayBars(ctx, key, b.interval)
	if err != nil {
		return nil, fmt.Errorf("build %s: intraday bars: %w", ticker, err)
	}
	if len(bars) < 2 {
		return nil, nil
	}
	bar := bars[len(bars)-2]
	bar.Symbol = ticker
	if err := bar.Validate(); err != nil {
		b.metrics.RecordError("bar_invalid")
		return nil, fmt.Errorf("build %s: %w", ticker, err)
	}

	switch b.gate.Check(ticker, bar.Timestamp) {
	case Reject:
		return nil, nil
	case Prime:
		b.gate.Commit(ticker, bar.Timestamp)
		b.logger.Debug("gate primed",
			applogger.String("symbol", ticker),
			applogger.Int64("bar_ts", bar.Timestamp))
		return nil, nil
	}

	chain, err := b.chains.OptionChain(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("build %s: option chain: %w", ticker, err)
	}
	snap, err := b.sentiment.CurrentSentiment(ctx, ticker, bar.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("build %s: sentiment: %w", ticker, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("build %s: sentiment: empty snapshot", ticker)
	}

	if !b.gate.Commit(ticker, bar.Timestamp) {
		return nil, nil
	}

	if b.sink != nil && !b.sink.Submit(ctx, ticker, bar) {
		b.metrics.RecordError("persist_drop")
	}

	rsi := b.osc.Update(ticker, oscillator.NetVolume(chain.Rows))
	b.metrics.RecordOscillator(ticker, rsi)

	s := *snap
	s.NetVolRSI = rsi
	s = regime.Resolve(s)

	st := b.structure.Observe(ticker, bar)

	b.metrics.RecordLastPrice(ticker, bar.Close)
	b.metrics.RecordLatency("build", time.Since(start).Seconds())

	barCopy := bar
	return &models.MarketEvent{
		Kind:        models.EventMarketUpdate,
		Timestamp:   bar.Timestamp,
		Symbol:      ticker,
		Bar:         &barCopy,
		Sentiment:   &s,
		OptionChain: chain.Rows,
		Structure:   &st,
	}, nil
}
