package symbols

import (
	"context"
	"testing"

	"NiftyPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var instruments = []Instrument{
	{Ticker: "NIFTY", UpstoxKey: "NSE_INDEX|Nifty 50", KiteToken: "256265"},
	{Ticker: "banknifty", UpstoxKey: "NSE_INDEX|Nifty Bank", KiteToken: "260105"},
}

func TestResolverProviders(t *testing.T) {
	up, err := NewResolver("upstox", instruments)
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, up.Tickers())

	key, ok := up.KeyForTicker("BankNifty")
	require.True(t, ok)
	assert.Equal(t, "NSE_INDEX|Nifty Bank", key)
	ticker, ok := up.TickerForKey("NSE_INDEX|Nifty 50")
	require.True(t, ok)
	assert.Equal(t, "NIFTY", ticker)

	kt, err := NewResolver("kite", instruments)
	require.NoError(t, err)
	ticker, ok = kt.TickerForKey("260105")
	require.True(t, ok)
	assert.Equal(t, "BANKNIFTY", ticker)
	_, ok = kt.TickerForKey("NSE_INDEX|Nifty 50")
	assert.False(t, ok)
}

func TestResolverRejectsBadConfig(t *testing.T) {
	cases := map[string][]Instrument{
		"missing key": {{Ticker: "NIFTY"}},
		"empty":       {{UpstoxKey: "x"}},
		"dup ticker":  {{Ticker: "NIFTY", UpstoxKey: "a"}, {Ticker: "nifty", UpstoxKey: "b"}},
		"dup key":     {{Ticker: "NIFTY", UpstoxKey: "a"}, {Ticker: "BANKNIFTY", UpstoxKey: "a"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewResolver("upstox", in)
			require.Error(t, err)
		})
	}
	_, err := NewResolver("zerodha", instruments)
	require.Error(t, err)
}

type chainStub struct{ got string }

func (s *chainStub) OptionChain(_ context.Context, key string) (*models.OptionChain, error) {
	s.got = key
	return &models.OptionChain{Underlying: key}, nil
}

func TestRekeyedChains(t *testing.T) {
	kt, err := NewResolver("kite", instruments)
	require.NoError(t, err)
	up, err := NewResolver("upstox", instruments)
	require.NoError(t, err)

	stub := &chainStub{}
	chains := NewRekeyedChains(stub, kt, up)
	oc, err := chains.OptionChain(context.Background(), "260105")
	require.NoError(t, err)
	assert.Equal(t, "NSE_INDEX|Nifty Bank", stub.got)
	assert.Equal(t, "NSE_INDEX|Nifty Bank", oc.Underlying)

	_, err = chains.OptionChain(context.Background(), "999")
	assert.Error(t, err)
}
