package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	"NiftyPulse/pkg/metrics"
	xutil "NiftyPulse/pkg/util"
)

func sessionBar(day time.Time, hh, mm int, close float64) models.Bar {
	ts := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, xutil.IST).Unix()
	b := bar(ts, close)
	b.Symbol = "NIFTY"
	return b
}

func TestGetCandlesSessionWindow(t *testing.T) {
	store := newMemStore()
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, xutil.IST)
	ctx := context.Background()
	for _, b := range []models.Bar{
		sessionBar(day, 9, 0, 1),   // pre-open
		sessionBar(day, 9, 15, 2),  // first bar
		sessionBar(day, 15, 29, 3), // last bar
		sessionBar(day, 15, 30, 4), // after close
	} {
		require.NoError(t, store.StoreBar(ctx, "NIFTY", "NSE", drepo.Interval1m, b))
	}

	uc := NewCandlesUseCase(store)
	res, err := uc.GetCandles(ctx, GetCandlesParams{Symbol: "NIFTY", Date: "2024-06-03"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "1m", res.Interval)

	_, err = uc.GetCandles(ctx, GetCandlesParams{Symbol: "NIFTY", Date: "June 3"})
	require.Error(t, err)
	_, err = uc.GetCandles(ctx, GetCandlesParams{})
	require.Error(t, err)
}

func TestGetTradesByDay(t *testing.T) {
	j := &memJournal{}
	in := intent()
	in.BarTime = time.Date(2024, 6, 3, 10, 0, 0, 0, xutil.IST).Unix()
	require.NoError(t, j.Record(context.Background(), in))

	uc := NewTradesUseCase(j)
	got, err := uc.GetTrades(context.Background(), "NIFTY", "2024-06-03")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = uc.GetTrades(context.Background(), "NIFTY", "2024-06-04")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type fixedTracker struct{ r models.Regime }

func (f fixedTracker) Current(string) models.Regime  { return f.r }
func (f fixedTracker) Commit(string, models.Regime) {}

type fixedChainReader struct{ rows []models.OptionChainRow }

func (f fixedChainReader) Rows(string) []models.OptionChainRow { return f.rows }
func (f fixedChainReader) Walls(string, float64) (float64, float64) {
	if len(f.rows) == 0 {
		return 0, 0
	}
	return 105, 95
}

type failingRegimes struct{}

func (failingRegimes) SaveRegime(context.Context, string, models.Regime, int64) error { return nil }
func (failingRegimes) LoadRegimes(context.Context, []string) (map[string]models.Regime, error) {
	return nil, errors.New("redis down")
}

func TestMarketView(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	b := bar(now.Add(-time.Minute).Unix(), 100)
	require.NoError(t, store.StoreBar(context.Background(), "NIFTY", "NSE", drepo.Interval1m, b))

	osc := &fakeOsc{}
	osc.Update("NIFTY", 1)
	uc := NewMarketViewUseCase(fixedTracker{models.RegimeCompleteBullish}, osc, fakeStructure{},
		fixedChainReader{rows: sampleChain().Rows}, store, failingRegimes{}, drepo.Interval1m)

	v, err := uc.GetView(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, models.RegimeCompleteBullish, v.Regime)
	require.NotNil(t, v.NetVolRSI)
	require.NotNil(t, v.LastBar)
	assert.Equal(t, 105.0, v.OIWallAbove)
	assert.Contains(t, v.Errors, "mirrored_regime")

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"regime":"COMPLETE_BULLISH"`)

	cv, err := uc.GetChain(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cv.Spot)

	empty := NewMarketViewUseCase(fixedTracker{models.RegimeSideways}, osc, fakeStructure{},
		fixedChainReader{}, store, nil, drepo.Interval1m)
	_, err = empty.GetChain(context.Background(), "NIFTY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKafkaBarsHandler(t *testing.T) {
	store := newMemStore()
	h := NewKafkaBarsHandler("niftypulse.bars", store, metrics.Nop{})
	assert.Equal(t, "niftypulse.bars", h.Topic())

	msg, _ := json.Marshal(models.BarMessage{Ticker: "NIFTY", Venue: "NSE", Interval: "1m", Bar: sessionBar(time.Now(), 10, 0, 5)})
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Len(t, store.bars["NIFTY"], 1)

	require.Error(t, h.Handle(context.Background(), []byte("{")))
	bad, _ := json.Marshal(models.BarMessage{Ticker: "NIFTY", Bar: models.Bar{Symbol: "NIFTY"}})
	require.Error(t, h.Handle(context.Background(), bad))
}

func TestBarRecorderRoutesByBackend(t *testing.T) {
	store, pub := newMemStore(), &memPublisher{}
	b := bar(60, 1)
	b.Symbol = "NIFTY"

	require.NoError(t, NewBarRecorder(pub, store, metrics.Nop{}, "clickhouse", "NSE", drepo.Interval1m).Process(context.Background(), "NIFTY", b))
	assert.Len(t, store.bars["NIFTY"], 1)

	require.NoError(t, NewBarRecorder(pub, store, metrics.Nop{}, "kafka", "NSE", drepo.Interval1m).Process(context.Background(), "NIFTY", b))
	assert.Len(t, pub.bars, 1)

	require.Error(t, NewBarRecorder(pub, store, metrics.Nop{}, "s3", "NSE", drepo.Interval1m).Process(context.Background(), "NIFTY", b))
}
