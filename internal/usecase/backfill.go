package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/queue"
)

const (
	BackfillJobType = "backfill_today"
	BackfillAll     = "ALL"
)

// BackfillPayload is the queue message for a backfill job.
type BackfillPayload struct {
	Symbol string `json:"symbol"`
}

// BackfillUseCase stores every closed intraday bar of today. Re-running is
// safe because stores upsert on (ticker, venue, interval, timestamp).
type BackfillUseCase struct {
	resolver drepo.SymbolResolver
	intraday drepo.IntradaySource
	store    drepo.BarStore
	venue    string
	interval drepo.Interval
	logger   *applogger.Logger
}

func NewBackfillUseCase(resolver drepo.SymbolResolver, intraday drepo.IntradaySource, store drepo.BarStore,
	venue string, interval drepo.Interval, logger *applogger.Logger) *BackfillUseCase {
	return &BackfillUseCase{
		resolver: resolver,
		intraday: intraday,
		store:    store,
		venue:    venue,
		interval: interval,
		logger:   logger,
	}
}

// Run backfills one ticker or ALL and returns the number of stored bars.
func (uc *BackfillUseCase) Run(ctx context.Context, symbol string) (int, error) {
	tickers := []string{strings.ToUpper(symbol)}
	if strings.EqualFold(symbol, BackfillAll) || symbol == "" {
		tickers = uc.resolver.Tickers()
	}
	total := 0
	for _, t := range tickers {
		n, err := uc.runOne(ctx, t)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (uc *BackfillUseCase) runOne(ctx context.Context, ticker string) (int, error) {
	key, ok := uc.resolver.KeyForTicker(ticker)
	if !ok {
		return 0, fmt.Errorf("backfill: unknown ticker %s", ticker)
	}
	start := time.Now()
	bars, err := uc.intraday.IntradayBars(ctx, key, uc.interval)
	if err != nil {
		return 0, fmt.Errorf("backfill %s: %w", ticker, err)
	}
	if len(bars) < 2 {
		uc.logger.Warn("backfill: no closed bars", applogger.String("symbol", ticker))
		return 0, nil
	}
	closed := make([]models.Bar, 0, len(bars)-1)
	for _, b := range bars[:len(bars)-1] {
		b.Symbol = ticker
		if err := b.Validate(); err != nil {
			uc.logger.Warn("backfill: skip invalid bar",
				applogger.String("symbol", ticker),
				applogger.Int64("bar_ts", b.Timestamp),
				applogger.Error(err))
			continue
		}
		closed = append(closed, b)
	}
	stored := 0
	if batch, ok := uc.store.(drepo.BarBatchStore); ok {
		if err := batch.StoreBars(ctx, ticker, uc.venue, uc.interval, closed); err != nil {
			return 0, fmt.Errorf("backfill %s: %w", ticker, err)
		}
		stored = len(closed)
	} else {
		for _, b := range closed {
			if err := uc.store.StoreBar(ctx, ticker, uc.venue, uc.interval, b); err != nil {
				return stored, fmt.Errorf("backfill %s@%d: %w", ticker, b.Timestamp, err)
			}
			stored++
		}
	}
	uc.logger.Info("backfill done",
		applogger.String("symbol", ticker),
		applogger.Int("bars", stored),
		applogger.Duration("took_ms", time.Since(start)))
	return stored, nil
}

// BackfillJob runs BackfillUseCase from the Redis queue.
type BackfillJob struct {
	uc *BackfillUseCase
}

func NewBackfillJob(uc *BackfillUseCase) *BackfillJob { return &BackfillJob{uc: uc} }

func (j *BackfillJob) Name() string { return "backfill" }

func (j *BackfillJob) Type() string { return BackfillJobType }

func (j *BackfillJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[BackfillPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.uc.Run(ctx, p.Symbol)
	return err
}

var _ queue.Job = (*BackfillJob)(nil)
