// Package kite adapts Zerodha Kite Connect as an alternative feed and
// intraday source. Instrument keys are Kite instrument tokens in decimal.
package kite

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	kitemodels "github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
	xutil "NiftyPulse/pkg/util"
)

// Ticker implements MarketFeed on kiteticker. The library reconnects by
// itself, so Reconnect only makes sure the ticker is serving.
type Ticker struct {
	apiKey      string
	accessToken string
	logger      *applogger.Logger

	mu        sync.Mutex
	t         *kiteticker.Ticker
	tokens    []uint32
	connected bool
	cancel    context.CancelFunc

	ticks chan *models.Tick
	errs  chan error
	now   func() time.Time
}

func NewTicker(apiKey, accessToken string, logger *applogger.Logger) *Ticker {
	return &Ticker{
		apiKey:      apiKey,
		accessToken: accessToken,
		logger:      logger,
		ticks:       make(chan *models.Tick, 1024),
		errs:        make(chan error, 1),
		now:         time.Now,
	}
}

func (k *Ticker) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.t != nil {
		return nil
	}
	if k.apiKey == "" || k.accessToken == "" {
		return fmt.Errorf("kite: api key and access token required")
	}
	t := kiteticker.New(k.apiKey, k.accessToken)

	t.OnError(func(err error) {
		k.logger.Warn("kite ticker error", applogger.Error(err))
		select {
		case k.errs <- err:
		default:
		}
	})
	t.OnClose(func(code int, reason string) {
		k.setConnected(false)
		k.logger.Warn("kite ticker closed", applogger.Int("code", code), applogger.String("reason", reason))
	})
	t.OnReconnect(func(attempt int, delay time.Duration) {
		k.logger.Info("kite ticker reconnecting", applogger.Int("attempt", attempt), applogger.Duration("delay_ms", delay))
	})
	t.OnNoReconnect(func(attempt int) {
		k.logger.Error("kite ticker gave up reconnecting", applogger.Int("attempt", attempt))
		select {
		case k.errs <- fmt.Errorf("kite: no reconnect after %d attempts", attempt):
		default:
		}
	})
	t.OnConnect(func() {
		k.setConnected(true)
		k.logger.Info("kite ticker connected")
		k.mu.Lock()
		tokens := append([]uint32(nil), k.tokens...)
		k.mu.Unlock()
		k.subscribeTokens(t, tokens)
	})
	t.OnTick(k.handleTick)

	sctx, cancel := context.WithCancel(ctx)
	k.t = t
	k.cancel = cancel
	go t.ServeWithContext(sctx)
	return nil
}

func (k *Ticker) setConnected(v bool) {
	k.mu.Lock()
	k.connected = v
	k.mu.Unlock()
}

func (k *Ticker) subscribeTokens(t *kiteticker.Ticker, tokens []uint32) {
	for _, chunk := range chunkTokens(tokens, 200) {
		if err := t.Subscribe(chunk); err != nil {
			k.logger.Warn("kite subscribe chunk failed", applogger.Error(err))
		}
		if err := t.SetMode(kiteticker.ModeFull, chunk); err != nil {
			k.logger.Warn("kite set mode failed", applogger.Error(err))
		}
	}
}

// Subscribe records tokens and subscribes now if already connected; the
// connect callback subscribes otherwise.
func (k *Ticker) Subscribe(_ context.Context, keys []string) error {
	tokens, err := ParseTokens(keys)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.tokens = tokens
	t, connected := k.t, k.connected
	k.mu.Unlock()
	if t != nil && connected {
		k.subscribeTokens(t, tokens)
	}
	return nil
}

func (k *Ticker) handleTick(tk kitemodels.Tick) {
	ts := tk.Timestamp.Time
	if ts.IsZero() {
		ts = k.now()
	}
	t := &models.Tick{
		InstrumentKey: strconv.FormatUint(uint64(tk.InstrumentToken), 10),
		BarTimestamp:  xutil.AlignToBar(ts, time.Minute).Unix(),
		LastPrice:     tk.LastPrice,
	}
	select {
	case k.ticks <- t:
	default:
		// drop on backpressure
	}
}

func (k *Ticker) Read(_ context.Context) (<-chan *models.Tick, <-chan error) {
	return k.ticks, k.errs
}

func (k *Ticker) Reconnect(ctx context.Context) error {
	k.mu.Lock()
	running := k.t != nil
	k.mu.Unlock()
	if running {
		return nil
	}
	return k.Connect(ctx)
}

func (k *Ticker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.t != nil {
		k.t.Stop()
		k.cancel()
		k.t = nil
	}
	k.connected = false
	return nil
}

func (k *Ticker) IsConnected() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.connected
}

// ParseTokens converts decimal instrument tokens.
func ParseTokens(keys []string) ([]uint32, error) {
	out := make([]uint32, 0, len(keys))
	for _, key := range keys {
		v, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("kite: invalid instrument token %q", key)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func chunkTokens(tokens []uint32, size int) [][]uint32 {
	var out [][]uint32
	for len(tokens) > 0 {
		n := size
		if len(tokens) < n {
			n = len(tokens)
		}
		out = append(out, tokens[:n])
		tokens = tokens[n:]
	}
	return out
}

var _ drepo.MarketFeed = (*Ticker)(nil)
