// Package sentiment derives SentimentSnapshot values from option chains.
package sentiment

import (
	"context"
	"fmt"
	"sync"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
)

type observation struct {
	asOf    int64
	spot    float64
	totalOI int64
	trend   models.SmartTrend
}

// Analyzer implements SentimentSource on top of an OptionChainSource.
// Smart trend compares spot and total OI with the previous bar's fetch.
type Analyzer struct {
	chains   drepo.OptionChainSource
	resolver drepo.SymbolResolver

	mu   sync.Mutex
	prev map[string]observation
}

func NewAnalyzer(chains drepo.OptionChainSource, resolver drepo.SymbolResolver) *Analyzer {
	return &Analyzer{chains: chains, resolver: resolver, prev: make(map[string]observation)}
}

func (a *Analyzer) CurrentSentiment(ctx context.Context, ticker string, asOf int64) (*models.SentimentSnapshot, error) {
	key, ok := a.resolver.KeyForTicker(ticker)
	if !ok {
		return nil, fmt.Errorf("sentiment: unknown ticker %s", ticker)
	}
	chain, err := a.chains.OptionChain(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sentiment: option chain %s: %w", ticker, err)
	}
	snap := Analyze(chain)
	_, _, callOI, putOI := chain.Totals()
	snap.SmartTrend = a.trend(ticker, asOf, chain.Spot, callOI+putOI)
	return &snap, nil
}

// trend is idempotent per (ticker, asOf): asking twice for the same bar
// returns the same answer without advancing the baseline.
func (a *Analyzer) trend(ticker string, asOf int64, spot float64, totalOI int64) models.SmartTrend {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, seen := a.prev[ticker]
	if seen && p.asOf == asOf {
		return p.trend
	}
	cur := observation{asOf: asOf, spot: spot, totalOI: totalOI}
	if seen && asOf > p.asOf {
		cur.trend = SmartTrend(spot-p.spot, totalOI-p.totalOI)
	}
	if !seen || asOf > p.asOf {
		a.prev[ticker] = cur
	}
	return cur.trend
}

// SmartTrend classifies a price change against an open interest change.
func SmartTrend(dPrice float64, dOI int64) models.SmartTrend {
	switch {
	case dPrice > 0 && dOI > 0:
		return models.TrendLongBuildup
	case dPrice < 0 && dOI > 0:
		return models.TrendShortBuildup
	case dPrice > 0 && dOI < 0:
		return models.TrendShortCovering
	case dPrice < 0 && dOI < 0:
		return models.TrendLongUnwinding
	default:
		return models.TrendNone
	}
}

// Analyze computes ratios and OI walls for a single chain. A wall with no
// qualifying strike is reported as 0.
func Analyze(chain *models.OptionChain) models.SentimentSnapshot {
	var s models.SentimentSnapshot
	if chain == nil {
		return s
	}
	callVol, putVol, callOI, putOI := chain.Totals()
	if callOI > 0 {
		s.PCR = float64(putOI) / float64(callOI)
	}
	if callVol > 0 {
		s.VolumePCR = float64(putVol) / float64(callVol)
	}

	var maxCall, maxPut int64 = -1, -1
	for _, r := range chain.Rows {
		if r.Strike >= chain.Spot && r.CallOI > maxCall {
			maxCall = r.CallOI
			s.OIWallAbove = r.Strike
		}
		if r.Strike <= chain.Spot && r.PutOI > maxPut {
			maxPut = r.PutOI
			s.OIWallBelow = r.Strike
		}
	}
	return s
}
