package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// URLFunc returns the websocket URL to dial. Upstox issues one-time URLs.
type URLFunc func(ctx context.Context) (string, error)

// Feed implements MarketFeed over the Upstox V3 market data websocket.
// Subscriptions go out as JSON, market data arrives as protobuf.
type Feed struct {
	url            URLFunc
	mode           string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	metrics        drepo.Metrics
	logger         *applogger.Logger

	mu        sync.Mutex // guards conn writes and state
	conn      *websocket.Conn
	connected bool
}

func NewFeed(url URLFunc, mode string, reconnectDelay, pingInterval time.Duration, m drepo.Metrics,
	logger *applogger.Logger) *Feed {
	if mode == "" {
		mode = "full"
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Feed{
		url:            url,
		mode:           mode,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		metrics:        m,
		logger:         logger,
	}
}

// StaticURL dials a fixed URL.
func StaticURL(u string) URLFunc {
	return func(context.Context) (string, error) { return u, nil }
}

// Connect establishes the WebSocket connection.
func (f *Feed) Connect(ctx context.Context) error {
	u, err := f.url(ctx)
	if err != nil {
		return fmt.Errorf("upstox feed url: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("upstox feed connect: %w", err)
	}
	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()
	f.logger.Info("upstox feed connected")
	return nil
}

type subscribeRequest struct {
	GUID   string `json:"guid"`
	Method string `json:"method"`
	Data   struct {
		Mode           string   `json:"mode"`
		InstrumentKeys []string `json:"instrumentKeys"`
	} `json:"data"`
}

// Subscribe subscribes to the given instrument keys.
func (f *Feed) Subscribe(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil || !f.connected {
		return fmt.Errorf("upstox feed not connected")
	}
	req := subscribeRequest{GUID: uuid.NewString(), Method: "sub"}
	req.Data.Mode = f.mode
	req.Data.InstrumentKeys = keys
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	// the feed only accepts binary frames
	if err := f.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("upstox subscribe: %w", err)
	}
	f.logger.Info("upstox feed subscribed", applogger.Int("keys", len(keys)))
	return nil
}

// Read streams ticks and errors. Both channels close when the read loop ends.
func (f *Feed) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.mu.Lock()
				if f.conn != nil {
					_ = f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				f.mu.Unlock()
			}
		}
	}()

	// read loop; survives reconnects by re-reading the current conn
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.detach(conn)
				select {
				case errs <- fmt.Errorf("upstox feed read: %w", err):
				case <-ctx.Done():
					return
				}
				continue
			}
			out, err := NormalizeFrame(b)
			if err != nil {
				f.metrics.RecordError("feed_decode")
				f.logger.Warn("upstox frame dropped", applogger.Int("bytes", len(b)), applogger.Error(err))
				continue
			}
			for _, t := range out {
				select {
				case ticks <- t:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// detach forgets conn if it is still the current connection.
func (f *Feed) detach(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == conn {
		_ = f.conn.Close()
		f.conn = nil
		f.connected = false
	}
}

// Reconnect closes and reconnects. The caller resubscribes.
func (f *Feed) Reconnect(ctx context.Context) error {
	_ = f.Close()
	select {
	case <-time.After(f.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.Connect(ctx)
}

// Close closes the WS connection.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (f *Feed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

var _ drepo.MarketFeed = (*Feed)(nil)
