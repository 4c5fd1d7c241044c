package repository

import (
	"context"
	"time"

	"NiftyPulse/internal/domain/models"
)

// MarketFeed is a streaming source of normalized ticks.
type MarketFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, keys []string) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// IntradaySource returns today's bars for an instrument key, oldest first.
// The most recent entry may still be forming.
type IntradaySource interface {
	IntradayBars(ctx context.Context, key string, interval Interval) ([]models.Bar, error)
}

type OptionChainSource interface {
	OptionChain(ctx context.Context, key string) (*models.OptionChain, error)
}

type SentimentSource interface {
	CurrentSentiment(ctx context.Context, ticker string, asOf int64) (*models.SentimentSnapshot, error)
}

type SymbolResolver interface {
	TickerForKey(key string) (string, bool)
	KeyForTicker(ticker string) (string, bool)
	Tickers() []string
}

// BarStore durably keeps closed bars keyed by (ticker, venue, interval, timestamp).
type BarStore interface {
	StoreBar(ctx context.Context, ticker, venue string, interval Interval, b models.Bar) error
	QueryBars(ctx context.Context, ticker string, interval Interval, from, to time.Time, limit int) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher fans domain records out to a message bus.
type Publisher interface {
	PublishBar(ctx context.Context, venue string, interval Interval, b models.Bar) error
	PublishIntent(ctx context.Context, intent models.TradeIntent) error
	PublishEvent(ctx context.Context, ev *models.MarketEvent) error
	Close() error
}

type OrderExecutor interface {
	Submit(ctx context.Context, intent models.TradeIntent) error
}

type SignalJournal interface {
	Record(ctx context.Context, intent models.TradeIntent) error
	List(ctx context.Context, ticker string, from, to time.Time) ([]models.TradeIntent, error)
}

// RegimeStore mirrors committed regimes outside the process.
type RegimeStore interface {
	SaveRegime(ctx context.Context, ticker string, r models.Regime, at int64) error
	LoadRegimes(ctx context.Context, tickers []string) (map[string]models.Regime, error)
}

type Metrics interface {
	RecordEventDispatched(symbol, kind string)
	RecordBarRejected(symbol string)
	RecordHandlerError(handler string)
	RecordSignal(symbol, optionType string)
	RecordOscillator(symbol string, value float64)
	RecordRegime(symbol string, score float64)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}

// BarBatchStore is implemented by stores that can insert many bars per round-trip.
type BarBatchStore interface {
	StoreBars(ctx context.Context, ticker, venue string, interval Interval, bars []models.Bar) error
}
