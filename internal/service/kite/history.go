package kite

import (
	"context"
	"fmt"
	"strconv"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/time/rate"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	upstream "NiftyPulse/internal/service/metrics"
	xutil "NiftyPulse/pkg/util"
)

// HistoryAPI is the subset of kiteconnect.Client used here.
type HistoryAPI interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// NewHistoryAPI builds an authenticated Kite Connect client.
func NewHistoryAPI(apiKey, accessToken string) *kiteconnect.Client {
	c := kiteconnect.New(apiKey)
	c.SetAccessToken(accessToken)
	return c
}

// History implements IntradaySource using the historical candles endpoint.
type History struct {
	api     HistoryAPI
	limiter *rate.Limiter
	now     func() time.Time
}

// NewHistory limits calls to the documented 3 requests per second.
func NewHistory(api HistoryAPI) *History {
	return &History{api: api, limiter: rate.NewLimiter(3, 1), now: time.Now}
}

func kiteInterval(iv drepo.Interval) string {
	switch iv {
	case drepo.Interval5m:
		return "5minute"
	case drepo.Interval15m:
		return "15minute"
	default:
		return "minute"
	}
}

// IntradayBars returns today's session candles, ascending.
func (h *History) IntradayBars(ctx context.Context, key string, interval drepo.Interval) ([]models.Bar, error) {
	token, err := strconv.Atoi(key)
	if err != nil {
		return nil, fmt.Errorf("kite: invalid instrument token %q", key)
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	now := h.now()
	open, _ := xutil.SessionBounds(now)
	start := time.Now()
	rows, err := h.api.GetHistoricalData(token, kiteInterval(interval), open, now, false, false)
	upstream.Observe("kite", "historical", start, err)
	if err != nil {
		return nil, fmt.Errorf("kite historical %s: %w", key, err)
	}
	out := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Bar{
			Timestamp: r.Date.Time.Unix(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    int64(r.Volume),
		})
	}
	return out, nil
}

var _ drepo.IntradaySource = (*History)(nil)
