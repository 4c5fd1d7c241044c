package service

import "NiftyPulse/internal/domain/models"

// Oscillator maintains a rolling indicator per instrument.
type Oscillator interface {
	Update(symbol string, sample float64) float64
	Value(symbol string) (float64, bool)
}

// StructureDetector reads swing structure from a stream of closed bars.
type StructureDetector interface {
	Observe(symbol string, b models.Bar) models.MarketStructure
}

// RegimeTracker keeps the last committed regime per instrument.
type RegimeTracker interface {
	Current(symbol string) models.Regime
	Commit(symbol string, r models.Regime)
}
