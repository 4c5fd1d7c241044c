package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, ticker string, b models.Bar) error
}

type item struct {
	ticker   string
	bar      models.Bar
	attempts int
}

// PersistPipeline decouples bar persistence from dispatch. Submit never
// blocks; a background worker drains the buffer and retries failed writes
// with capped exponential backoff. A pipeline runs once: Start after Stop
// is a no-op.
type PersistPipeline struct {
	proc        Proc
	metrics     domrepo.Metrics
	logger      *applogger.Logger
	bufSize     int
	maxAttempts int
	bufCh       chan item
	stopCh      chan struct{}
	doneCh      chan struct{}

	mu       sync.Mutex
	started  bool
	stopped  bool
	drainCtx context.Context
}

type PipelineOption func(*PersistPipeline)

// WithBufferSize sets the number of bars that may wait for the store.
func WithBufferSize(n int) PipelineOption {
	return func(p *PersistPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts bounds how often one bar is retried before it is dropped.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *PersistPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func NewPersistPipeline(proc Proc, metrics domrepo.Metrics, logger *applogger.Logger, opts ...PipelineOption) *PersistPipeline {
	p := &PersistPipeline{
		proc:        proc,
		metrics:     metrics,
		logger:      logger,
		bufSize:     256,
		maxAttempts: 5,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan item, p.bufSize)
	return p
}

// Start launches the background writer. Writes run on a context that
// keeps ctx's values but not its cancellation, so bars buffered when the
// engine is cancelled still reach the store during Stop.
func (p *PersistPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	wctx := context.WithoutCancel(ctx)
	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				p.drain()
				return
			case it := <-p.bufCh:
				if err := p.write(wctx, it); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.retry(it, err)
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						p.drain()
						return
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop flushes what is buffered within ctx and stops the writer. Bars still
// unwritten when ctx expires are dropped and logged.
func (p *PersistPipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.drainCtx = ctx
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Submit validates and enqueues a bar. It reports false when the bar was
// rejected or the buffer was full.
func (p *PersistPipeline) Submit(_ context.Context, ticker string, b models.Bar) bool {
	if err := validateBar(ticker, b); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false
	}
	select {
	case p.bufCh <- item{ticker: ticker, bar: b}:
		return true
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return false
	}
}

// Depth is the number of bars waiting to be written.
func (p *PersistPipeline) Depth() int { return len(p.bufCh) }

func (p *PersistPipeline) write(ctx context.Context, it item) error {
	start := time.Now()
	if err := p.proc.Process(ctx, it.ticker, it.bar); err != nil {
		p.metrics.RecordError("pipeline_process")
		return err
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *PersistPipeline) retry(it item, err error) {
	it.attempts++
	if it.attempts >= p.maxAttempts {
		p.metrics.RecordError("pipeline_give_up")
		p.logger.Error("bar persist gave up",
			applogger.String("symbol", it.ticker),
			applogger.Int64("bar_ts", it.bar.Timestamp),
			applogger.Int("attempts", it.attempts),
			applogger.Error(err))
		return
	}
	select {
	case p.bufCh <- it:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
	}
}

func (p *PersistPipeline) drain() {
	p.mu.Lock()
	ctx := p.drainCtx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case it := <-p.bufCh:
			if err := p.write(ctx, it); err != nil {
				p.metrics.RecordError("pipeline_shutdown_drop")
				p.logger.Warn("bar persist dropped on shutdown",
					applogger.String("symbol", it.ticker),
					applogger.Int64("bar_ts", it.bar.Timestamp),
					applogger.Error(err))
			}
		default:
			return
		}
	}
}

func validateBar(ticker string, b models.Bar) error {
	if ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	return b.Validate()
}
