package upstox

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/metrics"
)

func bytesField(num protowire.Number, v []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func doubleField(num protowire.Number, f float64) []byte {
	b := protowire.AppendTag(nil, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(f))
}

func varintField(num protowire.Number, x uint64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, x)
}

func join(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func ohlcRow(interval string, close float64, tsMillis int64) []byte {
	return bytesField(1, join(
		bytesField(1, []byte(interval)),
		doubleField(2, close-1),
		doubleField(5, close),
		varintField(6, 1200),
		varintField(7, uint64(tsMillis)),
	))
}

func ltpc(ltp float64) []byte { return join(doubleField(1, ltp), varintField(2, 1717386425000)) }

// feedMapEntry wraps one Feed message as a FeedResponse.feeds map entry.
func feedMapEntry(key string, feed []byte) []byte {
	return bytesField(2, join(bytesField(1, []byte(key)), bytesField(2, feed)))
}

func indexFull(ltp float64, rows ...[]byte) []byte {
	index := join(bytesField(1, ltpc(ltp)), bytesField(2, join(rows...)))
	return bytesField(2, bytesField(2, index))
}

func marketFull(ltp float64, rows ...[]byte) []byte {
	market := join(
		bytesField(1, ltpc(ltp)),
		bytesField(4, join(rows...)),
		doubleField(5, 101.2),
		doubleField(7, 250000),
	)
	return bytesField(2, bytesField(1, market))
}

func liveFrame() []byte {
	return join(
		varintField(1, 1),
		feedMapEntry("NSE_INDEX|Nifty 50", indexFull(22505.5,
			ohlcRow("1d", 22500, 1717353000000),
			ohlcRow("I1", 22505, 1717386420000))),
		feedMapEntry("NSE_FO|43885", marketFull(101.5, ohlcRow("I1", 101, 1717386420000))),
		feedMapEntry("NSE_INDEX|Nifty Bank", bytesField(1, ltpc(49000))),
		varintField(3, 1717386425123),
	)
}

func TestNormalizeFrame(t *testing.T) {
	ticks, err := NormalizeFrame(liveFrame())
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	byKey := map[string]float64{}
	for _, tk := range ticks {
		assert.Equal(t, int64(1717386420), tk.BarTimestamp)
		byKey[tk.InstrumentKey] = tk.LastPrice
	}
	assert.Equal(t, 22505.5, byKey["NSE_INDEX|Nifty 50"])
	assert.Equal(t, 101.5, byKey["NSE_FO|43885"])
}

func TestNormalizeFrameFallsBackToClose(t *testing.T) {
	ticks, err := NormalizeFrame(feedMapEntry("NSE_INDEX|Nifty 50", indexFull(0, ohlcRow("I1", 22480, 1717386445000))))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, 22480.0, ticks[0].LastPrice)
	assert.Equal(t, int64(1717386420), ticks[0].BarTimestamp)
}

func TestNormalizeFrameRejectsGarbage(t *testing.T) {
	_, err := NormalizeFrame([]byte{0x12, 0x05, 0x01})
	require.Error(t, err)

	_, err = NormalizeFrame([]byte(`{"type":"live_feed"}`))
	require.Error(t, err)

	ticks, err := NormalizeFrame(nil)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

type decodeErrors struct {
	metrics.Nop
	n atomic.Int32
}

func (d *decodeErrors) RecordError(kind string) {
	if kind == "feed_decode" {
		d.n.Add(1)
	}
}

func TestFeedSubscribeAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subs := make(chan subscribeRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mt, b, err := conn.ReadMessage()
		if err != nil || mt != websocket.BinaryMessage {
			return
		}
		var req subscribeRequest
		_ = json.Unmarshal(b, &req)
		subs <- req
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x12, 0x05, 0x01})
		_ = conn.WriteMessage(websocket.BinaryMessage, liveFrame())
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	m := &decodeErrors{}
	f := NewFeed(StaticURL("ws"+strings.TrimPrefix(srv.URL, "http")), "", 10*time.Millisecond, time.Second, m, applogger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, f.Connect(ctx))
	require.True(t, f.IsConnected())
	require.NoError(t, f.Subscribe(ctx, []string{"NSE_INDEX|Nifty 50"}))

	req := <-subs
	assert.Equal(t, "sub", req.Method)
	assert.Equal(t, "full", req.Data.Mode)
	assert.NotEmpty(t, req.GUID)

	ticks, errs := f.Read(ctx)
	got := 0
	for got < 2 {
		select {
		case tk := <-ticks:
			require.NotNil(t, tk)
			got++
		case err := <-errs:
			t.Fatalf("unexpected error before ticks: %v", err)
		case <-ctx.Done():
			t.Fatalf("timed out after %d ticks", got)
		}
	}

	// server closes after the frame; the read loop reports it
	select {
	case err := <-errs:
		require.Error(t, err)
	case <-ctx.Done():
		t.Fatalf("no read error after server close")
	}
	assert.False(t, f.IsConnected())
	assert.Equal(t, int32(1), m.n.Load())
	require.NoError(t, f.Close())
}

func TestSubscribeWithoutConnection(t *testing.T) {
	f := NewFeed(StaticURL("ws://127.0.0.1:1"), "full", 0, 0, metrics.Nop{}, applogger.Nop())
	require.Error(t, f.Subscribe(context.Background(), []string{"k"}))
}
