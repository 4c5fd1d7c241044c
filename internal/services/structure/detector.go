// Package structure classifies market structure from swing highs and lows.
package structure

import (
	"sync"

	"NiftyPulse/internal/domain/models"
)

const (
	DefaultLookback = 10
	minBars         = 4

	PatternHigherHighs = "HH/HL"
	PatternLowerLows   = "LH/LL"
)

// Detector compares the extremes of the older and newer halves of a rolling
// bar window. Higher high plus higher low is BULLISH; lower high plus lower
// low is BEARISH; anything else is SIDEWAYS.
type Detector struct {
	mu       sync.RWMutex
	lookback int
	bars     map[string][]models.Bar
	last     map[string]models.MarketStructure
}

func NewDetector(lookback int) *Detector {
	if lookback < minBars {
		lookback = DefaultLookback
	}
	return &Detector{
		lookback: lookback,
		bars:     make(map[string][]models.Bar),
		last:     make(map[string]models.MarketStructure),
	}
}

// Observe adds a closed bar and returns the structure over the current window.
// Bars not newer than the last observed one are ignored.
func (d *Detector) Observe(symbol string, b models.Bar) models.MarketStructure {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.bars[symbol]
	if n := len(w); n > 0 && b.Timestamp <= w[n-1].Timestamp {
		return d.last[symbol]
	}
	w = append(w, b)
	if over := len(w) - d.lookback; over > 0 {
		w = append(w[:0], w[over:]...)
	}
	d.bars[symbol] = w

	ms := classify(w)
	d.last[symbol] = ms
	return ms
}

// Last returns the most recent structure computed for symbol.
func (d *Detector) Last(symbol string) (models.MarketStructure, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ms, ok := d.last[symbol]
	return ms, ok
}

func classify(w []models.Bar) models.MarketStructure {
	if len(w) < minBars {
		return models.MarketStructure{Regime: models.RegimeSideways}
	}
	mid := len(w) / 2
	oldHigh, oldLow := extremes(w[:mid])
	newHigh, newLow := extremes(w[mid:])

	switch {
	case newHigh > oldHigh && newLow > oldLow:
		return models.MarketStructure{Regime: models.RegimeBullish, Pattern: PatternHigherHighs}
	case newHigh < oldHigh && newLow < oldLow:
		return models.MarketStructure{Regime: models.RegimeBearish, Pattern: PatternLowerLows}
	default:
		return models.MarketStructure{Regime: models.RegimeSideways}
	}
}

func extremes(bars []models.Bar) (high, low float64) {
	high, low = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}
