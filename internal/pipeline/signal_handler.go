package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// SignalOption configures SignalHandler.
type SignalOption func(*SignalHandler)

// WithEdgeTrigger fires only when a side's condition turns from false to true.
func WithEdgeTrigger(enabled bool) SignalOption {
	return func(h *SignalHandler) { h.edgeTriggered = enabled }
}

// WithCooldown suppresses a repeat on the same side within d of the last
// intent, measured in bar time.
func WithCooldown(d time.Duration) SignalOption {
	return func(h *SignalHandler) { h.cooldown = d }
}

// WithTickSize rounds intent prices to the given tick, e.g. 0.05.
func WithTickSize(tick float64) SignalOption {
	return func(h *SignalHandler) {
		if tick > 0 {
			h.tick = decimal.NewFromFloat(tick)
		}
	}
}

// WithClock overrides time.Now for intent timestamps.
func WithClock(now func() time.Time) SignalOption {
	return func(h *SignalHandler) { h.now = now }
}

type sideKey struct {
	symbol string
	side   models.OptionType
}

// SignalHandler turns aligned regime, structure and OI wall position into
// trade intents:
//
//	COMPLETE_BULLISH && structure BULLISH && close > oi_wall_below  BUY CALL
//	COMPLETE_BEARISH && structure BEARISH && close < oi_wall_above  BUY PUT
type SignalHandler struct {
	executor drepo.OrderExecutor
	metrics  drepo.Metrics
	logger   *applogger.Logger

	edgeTriggered bool
	cooldown      time.Duration
	tick          decimal.Decimal
	now           func() time.Time

	mu       sync.Mutex
	active   map[sideKey]bool
	lastFire map[sideKey]int64
}

func NewSignalHandler(executor drepo.OrderExecutor, metrics drepo.Metrics, logger *applogger.Logger, opts ...SignalOption) *SignalHandler {
	h := &SignalHandler{
		executor:      executor,
		metrics:       metrics,
		logger:        logger,
		edgeTriggered: true,
		now:           time.Now,
		active:        make(map[sideKey]bool),
		lastFire:      make(map[sideKey]int64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SignalHandler) Name() string { return "signal" }

func (h *SignalHandler) OnEvent(ctx context.Context, ev *models.MarketEvent) error {
	if ev.Kind != models.EventMarketUpdate || ev.Bar == nil || ev.Sentiment == nil || ev.Structure == nil {
		return nil
	}
	s, st, bar := ev.Sentiment, ev.Structure, ev.Bar

	bullish := s.Regime == models.RegimeCompleteBullish &&
		st.Regime == models.RegimeBullish &&
		bar.Close > s.OIWallBelow
	bearish := s.Regime == models.RegimeCompleteBearish &&
		st.Regime == models.RegimeBearish &&
		bar.Close < s.OIWallAbove

	var errs []error
	if h.shouldFire(ev.Symbol, models.OptionCall, bullish, bar.Timestamp) {
		if err := h.emit(ctx, ev, models.OptionCall); err != nil {
			errs = append(errs, err)
		}
	}
	if h.shouldFire(ev.Symbol, models.OptionPut, bearish, bar.Timestamp) {
		if err := h.emit(ctx, ev, models.OptionPut); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("submit intent: %v", errs)
	}
	return nil
}

func (h *SignalHandler) shouldFire(symbol string, side models.OptionType, cond bool, barTime int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := sideKey{symbol: symbol, side: side}
	was := h.active[k]
	h.active[k] = cond
	if !cond {
		return false
	}
	if h.edgeTriggered && was {
		return false
	}
	if last, ok := h.lastFire[k]; ok && h.cooldown > 0 && barTime-last < int64(h.cooldown/time.Second) {
		return false
	}
	h.lastFire[k] = barTime
	return true
}

func (h *SignalHandler) emit(ctx context.Context, ev *models.MarketEvent, side models.OptionType) error {
	price := decimal.NewFromFloat(ev.Bar.Close)
	if !h.tick.IsZero() {
		price = price.Div(h.tick).Round(0).Mul(h.tick)
	}
	intent := models.TradeIntent{
		ID:         uuid.NewString(),
		Instrument: ev.Symbol,
		Side:       models.SideBuy,
		OptionType: side,
		Price:      price,
		Regime:     ev.Sentiment.Regime,
		Structure:  ev.Structure.Regime,
		BarTime:    ev.Bar.Timestamp,
		CreatedAt:  h.now().UTC(),
	}
	h.metrics.RecordSignal(ev.Symbol, string(side))
	if err := h.executor.Submit(ctx, intent); err != nil {
		return fmt.Errorf("%s %s: %w", ev.Symbol, side, err)
	}
	return nil
}
