package pipeline

import (
	"context"
	"sort"
	"sync"

	"NiftyPulse/internal/domain/models"
)

// SnapshotStore keeps the latest option chain row per strike per instrument.
// Strikes missing from an update keep their previous row.
type SnapshotStore struct {
	mu   sync.RWMutex
	rows map[string]map[float64]models.OptionChainRow
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{rows: make(map[string]map[float64]models.OptionChainRow)}
}

func (s *SnapshotStore) Name() string { return "chain_store" }

func (s *SnapshotStore) OnEvent(_ context.Context, ev *models.MarketEvent) error {
	if ev.Kind != models.EventOptionChainUpdate && ev.Kind != models.EventMarketUpdate {
		return nil
	}
	if len(ev.OptionChain) == 0 {
		return nil
	}
	s.Upsert(ev.Symbol, ev.OptionChain)
	return nil
}

func (s *SnapshotStore) Upsert(symbol string, rows []models.OptionChainRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[symbol]
	if !ok {
		m = make(map[float64]models.OptionChainRow, len(rows))
		s.rows[symbol] = m
	}
	for _, r := range rows {
		m[r.Strike] = r
	}
}

// Latest returns a copy of the strike->row map, or nil for an unknown symbol.
func (s *SnapshotStore) Latest(symbol string) map[float64]models.OptionChainRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[symbol]
	if !ok {
		return nil
	}
	out := make(map[float64]models.OptionChainRow, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Rows returns the cached rows sorted by strike.
func (s *SnapshotStore) Rows(symbol string) []models.OptionChainRow {
	m := s.Latest(symbol)
	out := make([]models.OptionChainRow, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

// Walls returns the strike at or above spot with the largest call OI and the
// strike at or below spot with the largest put OI. Zero means no candidate.
func (s *SnapshotStore) Walls(symbol string, spot float64) (above, below float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var maxCall, maxPut int64 = -1, -1
	for strike, r := range s.rows[symbol] {
		if strike >= spot && (r.CallOI > maxCall || (r.CallOI == maxCall && strike < above)) {
			maxCall = r.CallOI
			above = strike
		}
		if strike <= spot && (r.PutOI > maxPut || (r.PutOI == maxPut && strike > below)) {
			maxPut = r.PutOI
			below = strike
		}
	}
	return above, below
}
