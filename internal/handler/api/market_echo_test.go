package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	"NiftyPulse/internal/pipeline"
	"NiftyPulse/internal/service/symbols"
	"NiftyPulse/internal/services/oscillator"
	"NiftyPulse/internal/services/regime"
	"NiftyPulse/internal/services/structure"
	"NiftyPulse/internal/usecase"
	applogger "NiftyPulse/pkg/logger"
)

type stubStore struct {
	bars []models.Bar
	err  error
}

func (s *stubStore) StoreBar(context.Context, string, string, drepo.Interval, models.Bar) error {
	return nil
}

func (s *stubStore) QueryBars(context.Context, string, drepo.Interval, time.Time, time.Time, int) ([]models.Bar, error) {
	return s.bars, s.err
}

func (s *stubStore) Health(context.Context) error { return s.err }
func (s *stubStore) Close() error                 { return nil }

type stubJournal struct{}

func (stubJournal) Record(context.Context, models.TradeIntent) error { return nil }
func (stubJournal) List(context.Context, string, time.Time, time.Time) ([]models.TradeIntent, error) {
	return nil, nil
}

type stubQueue struct {
	typ     string
	payload interface{}
	err     error
}

func (q *stubQueue) Enqueue(_ context.Context, typ string, payload interface{}) error {
	q.typ, q.payload = typ, payload
	return q.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type fixture struct {
	e       *echo.Echo
	store   *stubStore
	tracker *regime.Tracker
	chains  *pipeline.SnapshotStore
	queue   *stubQueue
}

func newFixture(t *testing.T, withQueue bool) *fixture {
	t.Helper()
	resolver, err := symbols.NewResolver("upstox", []symbols.Instrument{
		{Ticker: "NIFTY", UpstoxKey: "NSE_INDEX|Nifty 50"},
		{Ticker: "BANKNIFTY", UpstoxKey: "NSE_INDEX|Nifty Bank"},
	})
	require.NoError(t, err)

	f := &fixture{
		e:       echo.New(),
		store:   &stubStore{},
		tracker: regime.NewTracker(),
		chains:  pipeline.NewSnapshotStore(),
		queue:   &stubQueue{},
	}
	views := usecase.NewMarketViewUseCase(f.tracker, oscillator.New(), structure.NewDetector(6), f.chains, f.store, nil, drepo.Interval1m)
	var q Enqueuer
	if withQueue {
		q = f.queue
	}
	h := NewMarketEchoHandler(applogger.Nop(), usecase.NewCandlesUseCase(f.store), usecase.NewTradesUseCase(stubJournal{}),
		views, q, f.store, resolver)
	h.RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestCandlesEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.store.bars = []models.Bar{{Symbol: "NIFTY", Timestamp: 1717386300, Open: 1, High: 2, Low: 1, Close: 2, Volume: 10}}

	_, env := f.do(t, http.MethodGet, "/api/candles?symbol=nifty&date=2024-06-03&mode=backtest", "")
	require.Equal(t, http.StatusOK, env.Status)
	var res usecase.GetCandlesResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "NIFTY", res.Symbol)
	assert.Equal(t, 1, res.Count)

	_, env = f.do(t, http.MethodGet, "/api/candles?symbol=NIFTY&interval=2h", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)

	_, env = f.do(t, http.MethodGet, "/api/candles?symbol=SENSEX", "")
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestRegimeEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.tracker.Commit("NIFTY", models.RegimeCompleteBullish)

	_, env := f.do(t, http.MethodGet, "/api/regime?symbol=NIFTY", "")
	require.Equal(t, http.StatusOK, env.Status)
	var view models.MarketView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.RegimeCompleteBullish, view.Regime)

	_, env = f.do(t, http.MethodGet, "/api/regime", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestChainEndpoint(t *testing.T) {
	f := newFixture(t, false)
	_, env := f.do(t, http.MethodGet, "/api/chain?symbol=NIFTY", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	f.chains.Upsert("NIFTY", []models.OptionChainRow{
		{Strike: 22000, CallOI: 5, PutOI: 50},
		{Strike: 22100, CallOI: 90, PutOI: 1},
	})
	f.store.bars = []models.Bar{{Symbol: "NIFTY", Timestamp: 1, Close: 22050}}
	_, env = f.do(t, http.MethodGet, "/api/chain?symbol=NIFTY", "")
	require.Equal(t, http.StatusOK, env.Status)
	var view models.ChainView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Rows, 2)
	assert.Equal(t, 22100.0, view.OIWallAbove)
	assert.Equal(t, 22000.0, view.OIWallBelow)
}

func TestBackfillEndpoint(t *testing.T) {
	f := newFixture(t, true)
	_, env := f.do(t, http.MethodPost, "/api/backfill", `{"symbol":"banknifty"}`)
	require.Equal(t, http.StatusAccepted, env.Status)
	assert.Equal(t, usecase.BackfillJobType, f.queue.typ)
	assert.Equal(t, usecase.BackfillPayload{Symbol: "BANKNIFTY"}, f.queue.payload)

	_, env = f.do(t, http.MethodPost, "/api/backfill", `{"symbol":"ALL"}`)
	assert.Equal(t, http.StatusAccepted, env.Status)

	_, env = f.do(t, http.MethodPost, "/api/backfill", `{}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	f.queue.err = errors.New("redis down")
	_, env = f.do(t, http.MethodPost, "/api/backfill", `{"symbol":"NIFTY"}`)
	assert.Equal(t, http.StatusInternalServerError, env.Status)

	noQueue := newFixture(t, false)
	_, env = noQueue.do(t, http.MethodPost, "/api/backfill", `{"symbol":"NIFTY"}`)
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, false)
	rec, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.store.err = errors.New("clickhouse down")
	rec, _ = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
