// Package symbols maps configured tickers to provider instrument keys.
package symbols

import (
	"fmt"
	"strings"

	drepo "NiftyPulse/internal/domain/repository"
)

// Instrument is one configured underlying.
type Instrument struct {
	Ticker    string
	UpstoxKey string
	KiteToken string
}

// Resolver is an immutable two-way ticker/key index for one provider.
type Resolver struct {
	tickers  []string
	byTicker map[string]string
	byKey    map[string]string
}

// NewResolver indexes instruments for provider "upstox" or "kite".
func NewResolver(provider string, instruments []Instrument) (*Resolver, error) {
	r := &Resolver{
		byTicker: make(map[string]string, len(instruments)),
		byKey:    make(map[string]string, len(instruments)),
	}
	for _, in := range instruments {
		ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
		if ticker == "" {
			return nil, fmt.Errorf("symbols: empty ticker")
		}
		var key string
		switch provider {
		case "upstox":
			key = in.UpstoxKey
		case "kite":
			key = in.KiteToken
		default:
			return nil, fmt.Errorf("symbols: unknown provider %q", provider)
		}
		if key == "" {
			return nil, fmt.Errorf("symbols: %s has no %s key", ticker, provider)
		}
		if _, dup := r.byTicker[ticker]; dup {
			return nil, fmt.Errorf("symbols: duplicate ticker %s", ticker)
		}
		if other, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("symbols: key %s shared by %s and %s", key, other, ticker)
		}
		r.byTicker[ticker] = key
		r.byKey[key] = ticker
		r.tickers = append(r.tickers, ticker)
	}
	return r, nil
}

func (r *Resolver) TickerForKey(key string) (string, bool) {
	t, ok := r.byKey[key]
	return t, ok
}

func (r *Resolver) KeyForTicker(ticker string) (string, bool) {
	k, ok := r.byTicker[strings.ToUpper(ticker)]
	return k, ok
}

// Tickers returns tickers in configuration order.
func (r *Resolver) Tickers() []string {
	return append([]string(nil), r.tickers...)
}

var _ drepo.SymbolResolver = (*Resolver)(nil)
