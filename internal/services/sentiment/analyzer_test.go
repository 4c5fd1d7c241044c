package sentiment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"NiftyPulse/internal/domain/models"
	xhttp "NiftyPulse/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChains struct {
	chain *models.OptionChain
	err   error
	calls int
}

func (f *fakeChains) OptionChain(_ context.Context, _ string) (*models.OptionChain, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := *f.chain
	return &c, nil
}

type staticResolver map[string]string

func (r staticResolver) KeyForTicker(t string) (string, bool) { k, ok := r[t]; return k, ok }
func (r staticResolver) TickerForKey(k string) (string, bool) {
	for t, v := range r {
		if v == k {
			return t, true
		}
	}
	return "", false
}
func (r staticResolver) Tickers() []string { return []string{"NIFTY"} }

func sampleChain(spot float64, oiBoost int64) *models.OptionChain {
	return &models.OptionChain{
		Spot: spot,
		Rows: []models.OptionChainRow{
			{Strike: 21900, CallOI: 100, PutOI: 900 + oiBoost, CallVolume: 50, PutVolume: 300},
			{Strike: 22000, CallOI: 400, PutOI: 500, CallVolume: 200, PutVolume: 100},
			{Strike: 22100, CallOI: 1200 + oiBoost, PutOI: 100, CallVolume: 250, PutVolume: 100},
		},
	}
}

func TestAnalyze(t *testing.T) {
	s := Analyze(sampleChain(22010, 0))
	assert.InDelta(t, 1500.0/1700.0, s.PCR, 1e-9)
	assert.InDelta(t, 500.0/500.0, s.VolumePCR, 1e-9)
	assert.Equal(t, 22100.0, s.OIWallAbove)
	assert.Equal(t, 21900.0, s.OIWallBelow)
	assert.Empty(t, s.Regime)
}

func TestAnalyzeEmptyChain(t *testing.T) {
	s := Analyze(&models.OptionChain{Spot: 100})
	if s.PCR != 0 || s.VolumePCR != 0 || s.OIWallAbove != 0 || s.OIWallBelow != 0 {
		t.Fatalf("expected zero snapshot, got %+v", s)
	}
}

func TestSmartTrend(t *testing.T) {
	assert.Equal(t, models.TrendLongBuildup, SmartTrend(1, 1))
	assert.Equal(t, models.TrendShortBuildup, SmartTrend(-1, 1))
	assert.Equal(t, models.TrendShortCovering, SmartTrend(1, -1))
	assert.Equal(t, models.TrendLongUnwinding, SmartTrend(-1, -1))
	assert.Equal(t, models.TrendNone, SmartTrend(0, 5))
}

func TestAnalyzerTrendAcrossBars(t *testing.T) {
	chains := &fakeChains{chain: sampleChain(22000, 0)}
	a := NewAnalyzer(chains, staticResolver{"NIFTY": "NSE_INDEX|Nifty 50"})
	ctx := context.Background()

	first, err := a.CurrentSentiment(ctx, "NIFTY", 60)
	require.NoError(t, err)
	assert.Equal(t, models.TrendNone, first.SmartTrend)

	chains.chain = sampleChain(22050, 300)
	second, err := a.CurrentSentiment(ctx, "NIFTY", 120)
	require.NoError(t, err)
	assert.Equal(t, models.TrendLongBuildup, second.SmartTrend)

	again, err := a.CurrentSentiment(ctx, "NIFTY", 120)
	require.NoError(t, err)
	assert.Equal(t, models.TrendLongBuildup, again.SmartTrend)
}

func TestAnalyzerErrors(t *testing.T) {
	a := NewAnalyzer(&fakeChains{err: errors.New("boom")}, staticResolver{"NIFTY": "k"})
	if _, err := a.CurrentSentiment(context.Background(), "NIFTY", 60); err == nil {
		t.Fatalf("expected chain error")
	}
	if _, err := a.CurrentSentiment(context.Background(), "SENSEX", 60); err == nil {
		t.Fatalf("expected unknown ticker error")
	}
}

func TestRemoteSource(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/sentiment", r.URL.Path)
		assert.Equal(t, "NIFTY", r.URL.Query().Get("ticker"))
		assert.Equal(t, "120", r.URL.Query().Get("ts"))
		_, _ = w.Write([]byte(`{"pcr":1.3,"volume_pcr":0.7,"smart_trend":"Short Covering","oi_wall_above":22100,"oi_wall_below":21900,"regime":"BEARISH"}`))
	}))
	defer srv.Close()

	src := NewRemoteSource(srv.URL, 0)

	// one request per call; a 5xx is reported as temporary for the caller to retry
	_, err := src.CurrentSentiment(context.Background(), "NIFTY", 120)
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Temporary())
	assert.Equal(t, 1, hits)

	snap, err := src.CurrentSentiment(context.Background(), "NIFTY", 120)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
	assert.Equal(t, models.TrendShortCovering, snap.SmartTrend)
	assert.Equal(t, 21900.0, snap.OIWallBelow)
	assert.Empty(t, snap.Regime)
}

func TestRemoteSourceDoesNotRetryClientErrors(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewRemoteSource(srv.URL, 0).CurrentSentiment(context.Background(), "NIFTY", 120)
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Temporary())
	assert.Equal(t, 1, hits)
}
