// Package upstox adapts the Upstox v2/v3 REST API and market feed to the
// domain capabilities. All payload shapes are normalized here.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	upstream "NiftyPulse/internal/service/metrics"
	xhttp "NiftyPulse/pkg/http"
	xutil "NiftyPulse/pkg/util"
)

const DefaultBaseURL = "https://api.upstox.com"

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	// Expiries pins the option expiry (YYYY-MM-DD) per instrument key.
	Expiries map[string]string
}

// Client implements IntradaySource and OptionChainSource.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	expiries map[string]expiryEntry
}

type expiryEntry struct {
	day    string
	expiry string
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &Client{
		cfg:      cfg,
		http:     xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		now:      time.Now,
		expiries: make(map[string]expiryEntry),
	}
}

// payloadError marks malformed upstream payloads as temporary.
type payloadError struct{ err error }

func (e *payloadError) Error() string   { return "upstox payload: " + e.err.Error() }
func (e *payloadError) Unwrap() error   { return e.err }
func (e *payloadError) Temporary() bool { return true }

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"errors"`
}

func (c *Client) get(ctx context.Context, endpoint, path string, query map[string][]string, dest interface{}) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	defer func(start time.Time) { upstream.Observe("upstox", endpoint, start, err) }(time.Now())
	var raw []byte
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + path,
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Bearer " + c.cfg.AccessToken,
		},
		QueryParams: query,
	}, &raw)
	if err != nil {
		return fmt.Errorf("upstox %s: %w", path, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &payloadError{err: err}
	}
	if env.Status != "success" {
		msg := env.Status
		if len(env.Errors) > 0 {
			msg = env.Errors[0].ErrorCode + ": " + env.Errors[0].Message
		}
		return fmt.Errorf("upstox %s: %s", path, msg)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return &payloadError{err: err}
	}
	return nil
}

// IntradayBars returns today's candles ascending. The last entry may still be
// forming.
func (c *Client) IntradayBars(ctx context.Context, key string, interval drepo.Interval) ([]models.Bar, error) {
	path := fmt.Sprintf("/v3/historical-candle/intraday/%s/minutes/%d",
		url.PathEscape(key), drepo.NormalizeInterval(string(interval)).Minutes())
	var data struct {
		Candles [][]interface{} `json:"candles"`
	}
	if err := c.get(ctx, "intraday", path, nil, &data); err != nil {
		return nil, err
	}
	bars, err := NormalizeCandles(data.Candles)
	if err != nil {
		return nil, &payloadError{err: err}
	}
	return bars, nil
}

// NormalizeCandles decodes [ts, open, high, low, close, volume, oi] rows and
// sorts them ascending by timestamp.
func NormalizeCandles(rows [][]interface{}) ([]models.Bar, error) {
	out := make([]models.Bar, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("candle %d: %d fields", i, len(r))
		}
		ts, ok := r[0].(string)
		if !ok {
			return nil, fmt.Errorf("candle %d: timestamp %T", i, r[0])
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		var f [5]float64
		for j := 0; j < 5; j++ {
			v, ok := r[j+1].(float64)
			if !ok {
				return nil, fmt.Errorf("candle %d field %d: %T", i, j+1, r[j+1])
			}
			f[j] = v
		}
		out = append(out, models.Bar{
			Timestamp: t.Unix(),
			Open:      f[0],
			High:      f[1],
			Low:       f[2],
			Close:     f[3],
			Volume:    int64(f[4]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

type marketData struct {
	LTP    float64 `json:"ltp"`
	Volume float64 `json:"volume"`
	OI     float64 `json:"oi"`
}

type chainEntry struct {
	Expiry        string  `json:"expiry"`
	StrikePrice   float64 `json:"strike_price"`
	UnderlyingKey string  `json:"underlying_key"`
	Spot          float64 `json:"underlying_spot_price"`
	Call          struct {
		MarketData marketData `json:"market_data"`
	} `json:"call_options"`
	Put struct {
		MarketData marketData `json:"market_data"`
	} `json:"put_options"`
}

// OptionChain fetches the nearest-expiry chain for an underlying key.
func (c *Client) OptionChain(ctx context.Context, key string) (*models.OptionChain, error) {
	expiry, err := c.expiry(ctx, key)
	if err != nil {
		return nil, err
	}
	var entries []chainEntry
	q := map[string][]string{"instrument_key": {key}, "expiry_date": {expiry}}
	if err := c.get(ctx, "option_chain", "/v2/option/chain", q, &entries); err != nil {
		return nil, err
	}
	return NormalizeChain(key, expiry, entries), nil
}

// NormalizeChain maps chain entries to rows sorted by strike.
func NormalizeChain(key, expiry string, entries []chainEntry) *models.OptionChain {
	chain := &models.OptionChain{Underlying: key, Expiry: expiry, Rows: make([]models.OptionChainRow, 0, len(entries))}
	for _, e := range entries {
		if e.Spot > 0 {
			chain.Spot = e.Spot
		}
		chain.Rows = append(chain.Rows, models.OptionChainRow{
			Strike:     e.StrikePrice,
			CallVolume: int64(e.Call.MarketData.Volume),
			PutVolume:  int64(e.Put.MarketData.Volume),
			CallOI:     int64(e.Call.MarketData.OI),
			PutOI:      int64(e.Put.MarketData.OI),
			CallLTP:    e.Call.MarketData.LTP,
			PutLTP:     e.Put.MarketData.LTP,
		})
	}
	sort.Slice(chain.Rows, func(i, j int) bool { return chain.Rows[i].Strike < chain.Rows[j].Strike })
	return chain
}

// expiry resolves the nearest expiry on or after today, once per IST day.
func (c *Client) expiry(ctx context.Context, key string) (string, error) {
	if e, ok := c.cfg.Expiries[key]; ok && e != "" {
		return e, nil
	}
	today := c.now().In(xutil.IST).Format("2006-01-02")

	c.mu.Lock()
	cached, ok := c.expiries[key]
	c.mu.Unlock()
	if ok && cached.day == today {
		return cached.expiry, nil
	}

	var contracts []struct {
		Expiry string `json:"expiry"`
	}
	if err := c.get(ctx, "option_contract", "/v2/option/contract", map[string][]string{"instrument_key": {key}}, &contracts); err != nil {
		return "", err
	}
	best := ""
	for _, ct := range contracts {
		if ct.Expiry >= today && (best == "" || ct.Expiry < best) {
			best = ct.Expiry
		}
	}
	if best == "" {
		return "", fmt.Errorf("upstox: no open expiry for %s", key)
	}
	c.mu.Lock()
	c.expiries[key] = expiryEntry{day: today, expiry: best}
	c.mu.Unlock()
	return best, nil
}

// FeedURL asks the authorize endpoint for a one-time websocket URL.
func (c *Client) FeedURL(ctx context.Context) (string, error) {
	var data struct {
		URI string `json:"authorized_redirect_uri"`
	}
	if err := c.get(ctx, "feed_authorize", "/v3/feed/market-data-feed/authorize", nil, &data); err != nil {
		return "", err
	}
	if !strings.HasPrefix(data.URI, "ws") {
		return "", fmt.Errorf("upstox: unexpected feed uri %q", data.URI)
	}
	return data.URI, nil
}

var (
	_ drepo.IntradaySource    = (*Client)(nil)
	_ drepo.OptionChainSource = (*Client)(nil)
)
