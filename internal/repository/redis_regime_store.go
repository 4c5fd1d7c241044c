package repository

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	pkgcache "NiftyPulse/pkg/cache"
)

type regimeRecord struct {
	Regime models.Regime `json:"regime"`
	At     int64         `json:"at"`
}

// CacheRegimeStore mirrors committed regimes into a pkg/cache.Store
// (Redis in production). Entries expire after ttl so a stale session
// does not seed the next one.
type CacheRegimeStore struct {
	cache pkgcache.Store
	ttl   time.Duration
}

func NewCacheRegimeStore(c pkgcache.Store, ttl time.Duration) *CacheRegimeStore {
	return &CacheRegimeStore{cache: c, ttl: ttl}
}

func regimeKey(ticker string) string { return pkgcache.Key("regime", ticker) }

func (s *CacheRegimeStore) SaveRegime(ctx context.Context, ticker string, r models.Regime, at int64) error {
	if err := s.cache.Set(ctx, regimeKey(ticker), regimeRecord{Regime: r, At: at}, s.ttl); err != nil {
		return fmt.Errorf("save regime %s: %w", ticker, err)
	}
	return nil
}

// LoadRegimes returns the mirrored regime of each ticker that has one.
func (s *CacheRegimeStore) LoadRegimes(ctx context.Context, tickers []string) (map[string]models.Regime, error) {
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = regimeKey(t)
	}
	recs, err := pkgcache.MGetTyped[regimeRecord](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("load regimes: %w", err)
	}
	out := make(map[string]models.Regime, len(recs))
	for i, t := range tickers {
		if rec, ok := recs[keys[i]]; ok && rec.Regime.IsValid() {
			out[t] = rec.Regime
		}
	}
	return out, nil
}

var _ domrepo.RegimeStore = (*CacheRegimeStore)(nil)
