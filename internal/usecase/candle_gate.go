package usecase

import (
	"sync"

	drepo "NiftyPulse/internal/domain/repository"
)

// Verdict is the gate's answer for one observation.
type Verdict int

const (
	// Reject: stale or duplicate timestamp.
	Reject Verdict = iota
	// Prime: first observation under suppression; recorded, not emitted.
	Prime
	// Accept: strictly newer than the last recorded timestamp.
	Accept
)

type GateOption func(*Gate)

// WithSuppressFirst makes the first observation per instrument prime the gate
// instead of passing through.
func WithSuppressFirst(on bool) GateOption {
	return func(g *Gate) { g.suppressFirst = on }
}

// WithRejectMetrics counts rejected observations per instrument.
func WithRejectMetrics(m drepo.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// Gate admits at most one observation per (instrument, timestamp) and only in
// strictly increasing timestamp order.
type Gate struct {
	mu            sync.RWMutex
	last          map[string]int64
	suppressFirst bool
	metrics       drepo.Metrics
}

func NewGate(opts ...GateOption) *Gate {
	g := &Gate{last: make(map[string]int64)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check classifies ts without recording it.
func (g *Gate) Check(symbol string, ts int64) Verdict {
	g.mu.RLock()
	last, seen := g.last[symbol]
	g.mu.RUnlock()

	switch {
	case !seen && g.suppressFirst:
		return Prime
	case !seen || ts > last:
		return Accept
	}
	if g.metrics != nil {
		g.metrics.RecordBarRejected(symbol)
	}
	return Reject
}

// Commit records ts when it is newer than the stored value. It reports
// whether the stored value moved.
func (g *Gate) Commit(symbol string, ts int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, seen := g.last[symbol]; seen && ts <= last {
		return false
	}
	g.last[symbol] = ts
	return true
}

// Admit checks and records in one step. Only Accept returns true.
func (g *Gate) Admit(symbol string, ts int64) bool {
	v := g.Check(symbol, ts)
	if v == Reject {
		return false
	}
	return g.Commit(symbol, ts) && v == Accept
}

// Last returns the last recorded timestamp for symbol.
func (g *Gate) Last(symbol string) (int64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ts, ok := g.last[symbol]
	return ts, ok
}
