// Package oscillator computes a relative-strength oscillator over a
// bounded rolling window of net option volume per instrument.
package oscillator

import (
	"sync"

	"NiftyPulse/internal/domain/models"
)

const (
	DefaultWindow  = 14
	DefaultEpsilon = 0.001
	Neutral        = 50.0
)

type state struct {
	history []float64
	value   float64
}

// Engine keeps one window per instrument. Update is expected from a single
// dispatch goroutine; the read accessors may be called concurrently.
type Engine struct {
	mu      sync.RWMutex
	window  int
	epsilon float64
	states  map[string]*state
}

type Option func(*Engine)

// WithWindow sets the number of samples retained per instrument.
func WithWindow(n int) Option {
	return func(e *Engine) {
		if n >= 2 {
			e.window = n
		}
	}
}

// WithEpsilon sets the floor applied to a zero average loss.
func WithEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.epsilon = eps
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		window:  DefaultWindow,
		epsilon: DefaultEpsilon,
		states:  make(map[string]*state),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update appends sample to the instrument window and returns the new value in [0,100].
func (e *Engine) Update(symbol string, sample float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[symbol]
	if !ok {
		st = &state{history: make([]float64, 0, e.window), value: Neutral}
		e.states[symbol] = st
	}
	st.history = append(st.history, sample)
	if over := len(st.history) - e.window; over > 0 {
		st.history = append(st.history[:0], st.history[over:]...)
	}
	st.value = compute(st.history, e.epsilon)
	return st.value
}

// Value returns the last computed value for symbol.
func (e *Engine) Value(symbol string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[symbol]
	if !ok {
		return Neutral, false
	}
	return st.value, true
}

// History returns a copy of the retained samples, oldest first.
func (e *Engine) History(symbol string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[symbol]
	if !ok {
		return nil
	}
	out := make([]float64, len(st.history))
	copy(out, st.history)
	return out
}

func compute(history []float64, eps float64) float64 {
	if len(history) < 2 {
		return Neutral
	}
	var gain, loss float64
	n := float64(len(history) - 1)
	for i := 1; i < len(history); i++ {
		d := history[i] - history[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= n
	loss /= n
	if gain == 0 && loss == 0 {
		// flat window
		return Neutral
	}
	if loss == 0 {
		loss = eps
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// NetVolume is total call volume minus total put volume across rows.
func NetVolume(rows []models.OptionChainRow) float64 {
	var net int64
	for _, r := range rows {
		net += r.CallVolume - r.PutVolume
	}
	return float64(net)
}
