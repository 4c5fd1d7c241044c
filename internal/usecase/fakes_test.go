package usecase

import (
	"context"
	"sync"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
)

type staticResolver struct {
	byTicker map[string]string
	order    []string
}

func newResolver() *staticResolver {
	return &staticResolver{
		byTicker: map[string]string{"NIFTY": "NSE_INDEX|Nifty 50", "BANKNIFTY": "NSE_INDEX|Nifty Bank"},
		order:    []string{"NIFTY", "BANKNIFTY"},
	}
}

func (r *staticResolver) KeyForTicker(t string) (string, bool) { k, ok := r.byTicker[t]; return k, ok }
func (r *staticResolver) TickerForKey(k string) (string, bool) {
	for t, v := range r.byTicker {
		if v == k {
			return t, true
		}
	}
	return "", false
}
func (r *staticResolver) Tickers() []string { return r.order }

// scriptedIntraday returns one scripted response per call, repeating the last.
type scriptedIntraday struct {
	mu    sync.Mutex
	steps [][]models.Bar
	errs  []error
	calls int
}

func (s *scriptedIntraday) IntradayBars(_ context.Context, _ string, _ drepo.Interval) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i], nil
}

type fixedChains struct {
	chain *models.OptionChain
	err   error
	calls int
}

func (f *fixedChains) OptionChain(context.Context, string) (*models.OptionChain, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := *f.chain
	return &c, nil
}

type fixedSentiment struct {
	snap models.SentimentSnapshot
	err  error
}

func (f *fixedSentiment) CurrentSentiment(context.Context, string, int64) (*models.SentimentSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.snap
	return &s, nil
}

type fakeOsc struct{ samples []float64 }

func (f *fakeOsc) Update(_ string, v float64) float64 {
	f.samples = append(f.samples, v)
	return 55
}
func (f *fakeOsc) Value(string) (float64, bool) {
	if len(f.samples) == 0 {
		return 0, false
	}
	return 55, true
}

type fakeStructure struct{}

func (fakeStructure) Observe(string, models.Bar) models.MarketStructure {
	return models.MarketStructure{Regime: models.RegimeSideways}
}

func (fakeStructure) Last(string) (models.MarketStructure, bool) {
	return models.MarketStructure{Regime: models.RegimeBullish, Pattern: "HH/HL"}, true
}

type captureSink struct {
	mu   sync.Mutex
	bars []models.Bar
}

func (c *captureSink) Submit(_ context.Context, _ string, b models.Bar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = append(c.bars, b)
	return true
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []*models.MarketEvent
}

func (c *captureDispatcher) Dispatch(_ context.Context, ev *models.MarketEvent) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return 0
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type memStore struct {
	mu   sync.Mutex
	bars map[string][]models.Bar
	err  error
}

func newMemStore() *memStore { return &memStore{bars: map[string][]models.Bar{}} }

func (m *memStore) StoreBar(_ context.Context, ticker, _ string, _ drepo.Interval, b models.Bar) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.bars[ticker] {
		if old.Timestamp == b.Timestamp {
			m.bars[ticker][i] = b
			return nil
		}
	}
	m.bars[ticker] = append(m.bars[ticker], b)
	return nil
}

func (m *memStore) QueryBars(_ context.Context, ticker string, _ drepo.Interval, from, to time.Time, limit int) ([]models.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bar
	for _, b := range m.bars[ticker] {
		if !b.Time().Before(from) && b.Time().Before(to) {
			out = append(out, b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func bar(ts int64, close float64) models.Bar {
	return models.Bar{Timestamp: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 100}
}

func sampleChain() *models.OptionChain {
	return &models.OptionChain{
		Spot: 100,
		Rows: []models.OptionChainRow{
			{Strike: 95, CallVolume: 300, PutVolume: 100},
			{Strike: 105, CallVolume: 200, PutVolume: 50},
		},
	}
}
