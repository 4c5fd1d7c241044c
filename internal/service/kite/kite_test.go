package kite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	kitemodels "github.com/zerodha/gokiteconnect/v4/models"

	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
	xutil "NiftyPulse/pkg/util"
)

type fakeHistory struct {
	rows     []kiteconnect.HistoricalData
	err      error
	token    int
	interval string
	from     time.Time
}

func (f *fakeHistory) GetHistoricalData(token int, interval string, from, _ time.Time, _ bool, _ bool) ([]kiteconnect.HistoricalData, error) {
	f.token, f.interval, f.from = token, interval, from
	return f.rows, f.err
}

func TestHistoryIntradayBars(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, xutil.IST)
	api := &fakeHistory{rows: []kiteconnect.HistoricalData{
		{Date: kitemodels.Time{Time: day.Add(9*time.Hour + 15*time.Minute)}, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Date: kitemodels.Time{Time: day.Add(9*time.Hour + 16*time.Minute)}, Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 12},
	}}
	h := NewHistory(api)
	h.now = func() time.Time { return day.Add(9*time.Hour + 17*time.Minute) }

	bars, err := h.IntradayBars(context.Background(), "256265", drepo.Interval5m)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 256265, api.token)
	assert.Equal(t, "5minute", api.interval)
	assert.Equal(t, "09:15", api.from.In(xutil.IST).Format("15:04"))
	assert.Equal(t, int64(12), bars[1].Volume)

	_, err = h.IntradayBars(context.Background(), "NSE_INDEX|Nifty 50", drepo.Interval1m)
	require.Error(t, err)

	api.err = errors.New("TokenException")
	_, err = h.IntradayBars(context.Background(), "256265", drepo.Interval1m)
	require.Error(t, err)
}

func TestHandleTickTruncatesToMinute(t *testing.T) {
	k := NewTicker("key", "token", applogger.Nop())
	ts := time.Date(2024, 6, 3, 9, 20, 42, 0, xutil.IST)
	k.handleTick(kitemodels.Tick{InstrumentToken: 260105, LastPrice: 49000.5, Timestamp: kitemodels.Time{Time: ts}})

	ticks, _ := k.Read(context.Background())
	tk := <-ticks
	assert.Equal(t, "260105", tk.InstrumentKey)
	assert.Equal(t, ts.Truncate(time.Minute).Unix(), tk.BarTimestamp)
	assert.Equal(t, 49000.5, tk.LastPrice)
}

func TestParseTokensAndChunks(t *testing.T) {
	tokens, err := ParseTokens([]string{"256265", "260105"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{256265, 260105}, tokens)
	_, err = ParseTokens([]string{"abc"})
	require.Error(t, err)

	chunks := chunkTokens(make([]uint32, 450), 200)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 50)
}

func TestConnectRequiresCredentials(t *testing.T) {
	k := NewTicker("", "", applogger.Nop())
	require.Error(t, k.Connect(context.Background()))
	assert.False(t, k.IsConnected())
	require.NoError(t, k.Close())
}
