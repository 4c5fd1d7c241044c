package regime

import (
	"sync"

	"NiftyPulse/internal/domain/models"
)

// Tracker holds the last committed regime per instrument.
type Tracker struct {
	mu      sync.RWMutex
	current map[string]models.Regime
}

func NewTracker() *Tracker {
	return &Tracker{current: make(map[string]models.Regime)}
}

// Current returns the last committed regime, SIDEWAYS before any observation.
func (t *Tracker) Current(symbol string) models.Regime {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.current[symbol]; ok {
		return r
	}
	return models.RegimeSideways
}

func (t *Tracker) Commit(symbol string, r models.Regime) {
	if !r.IsValid() {
		return
	}
	t.mu.Lock()
	t.current[symbol] = r
	t.mu.Unlock()
}

// Restore seeds the tracker, e.g. from a RegimeStore on startup.
// Existing entries win over restored ones.
func (t *Tracker) Restore(saved map[string]models.Regime) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for sym, r := range saved {
		if _, ok := t.current[sym]; ok || !r.IsValid() {
			continue
		}
		t.current[sym] = r
	}
}

// Snapshot copies all committed regimes.
func (t *Tracker) Snapshot() map[string]models.Regime {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.Regime, len(t.current))
	for k, v := range t.current {
		out[k] = v
	}
	return out
}
