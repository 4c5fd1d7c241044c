package symbols

import (
	"context"
	"fmt"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
)

// RekeyedChains serves option chains keyed by one provider's instrument
// keys from a source that understands another provider's keys.
type RekeyedChains struct {
	next drepo.OptionChainSource
	from *Resolver
	to   *Resolver
}

// NewRekeyedChains translates from-keys to to-keys through the ticker.
func NewRekeyedChains(next drepo.OptionChainSource, from, to *Resolver) *RekeyedChains {
	return &RekeyedChains{next: next, from: from, to: to}
}

func (c *RekeyedChains) OptionChain(ctx context.Context, key string) (*models.OptionChain, error) {
	ticker, ok := c.from.TickerForKey(key)
	if !ok {
		return nil, fmt.Errorf("symbols: unknown key %s", key)
	}
	upstream, ok := c.to.KeyForTicker(ticker)
	if !ok {
		return nil, fmt.Errorf("symbols: %s has no chain key", ticker)
	}
	return c.next.OptionChain(ctx, upstream)
}

var _ drepo.OptionChainSource = (*RekeyedChains)(nil)
