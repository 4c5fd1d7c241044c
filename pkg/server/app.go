package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "NiftyPulse/internal/domain/repository"
	"NiftyPulse/internal/middleware"
	"NiftyPulse/internal/services/regime"
	pkgcache "NiftyPulse/pkg/cache"
	xhttp "NiftyPulse/pkg/http"
	pkgkafka "NiftyPulse/pkg/kafka"
	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/queue"
)

// ErrLocked is returned when another engine instance holds the lock.
var ErrLocked = errors.New("engine lock held by another instance")

// Ingestor is one ingestion engine: polling or live.
type Ingestor interface {
	Name() string
	Run(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	logger   *applogger.Logger
	ingestor Ingestor

	persist    *middleware.PersistPipeline
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	queue      *queue.RedisQueue
	httpServer *xhttp.Server

	locker  pkgcache.Locker
	lockKey string
	lockTTL time.Duration

	tracker *regime.Tracker
	regimes drepo.RegimeStore
	tickers []string

	shutdownTimeout time.Duration
	closers         []namedCloser
}

// CloserFunc adapts a func to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

type namedCloser struct {
	name string
	c    io.Closer
}

// New creates an App around the ingestion engine. Everything else is optional.
func New(logger *applogger.Logger, ingestor Ingestor) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		logger:          logger,
		ingestor:        ingestor,
		shutdownTimeout: 15 * time.Second,
	}
}

// SetPersist attaches the asynchronous bar writer.
func (a *App) SetPersist(p *middleware.PersistPipeline) { a.persist = p }

// SetConsumer attaches a kafka consumer and the handler it serves.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.kh = c, h
}

// SetQueue attaches the background job queue.
func (a *App) SetQueue(q *queue.RedisQueue) { a.queue = q }

// SetHTTPServer attaches the read API.
func (a *App) SetHTTPServer(s *xhttp.Server, shutdownTimeout time.Duration) {
	a.httpServer = s
	if shutdownTimeout > 0 {
		a.shutdownTimeout = shutdownTimeout
	}
}

// SetLock makes Run hold key in c for its lifetime.
func (a *App) SetLock(c pkgcache.Locker, key string, ttl time.Duration) {
	a.locker, a.lockKey, a.lockTTL = c, key, ttl
}

// SetRegimeRestore seeds tracker from store before ingestion starts.
func (a *App) SetRegimeRestore(tracker *regime.Tracker, store drepo.RegimeStore, tickers []string) {
	a.tracker, a.regimes, a.tickers = tracker, store, tickers
}

// AddCloser registers a resource closed on shutdown, last added first.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts the application and blocks until interrupted or the ingestor
// returns.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with a caller supplied lifetime.
func (a *App) RunContext(ctx context.Context) error {
	if a.ingestor == nil {
		return fmt.Errorf("app: no ingestor")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.acquireLock(ctx); err != nil {
		return err
	}
	a.restoreRegimes(ctx)

	if a.persist != nil {
		a.persist.Start(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start failed", applogger.Error(err))
		} else {
			a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.logger.Error("job queue start failed", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http server start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	a.logger.Info("ingestion started", applogger.String("engine", a.ingestor.Name()))
	runErr := a.ingestor.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		a.logger.Error("ingestor stopped", applogger.Error(runErr))
	} else {
		runErr = nil
	}

	a.logger.Info("shutting down")
	cancel()
	a.shutdown()
	return runErr
}

func (a *App) acquireLock(ctx context.Context) error {
	if a.locker == nil || a.lockKey == "" {
		return nil
	}
	ttl := a.lockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ok, err := a.locker.TryLock(ctx, a.lockKey, ttl)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, a.lockKey)
	}
	go a.refreshLock(ctx, ttl)
	return nil
}

func (a *App) refreshLock(ctx context.Context, ttl time.Duration) {
	t := time.NewTicker(ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ok, err := a.locker.Expire(ctx, a.lockKey, ttl); err != nil || !ok {
				a.logger.Warn("lock refresh failed", applogger.String("key", a.lockKey), applogger.Error(err))
			}
		}
	}
}

func (a *App) restoreRegimes(ctx context.Context) {
	if a.tracker == nil || a.regimes == nil {
		return
	}
	saved, err := a.regimes.LoadRegimes(ctx, a.tickers)
	if err != nil {
		a.logger.Warn("regime restore failed", applogger.Error(err))
		return
	}
	a.tracker.Restore(saved)
	a.logger.Info("regimes restored", applogger.Int("count", len(saved)))
}

// shutdown stops every component; ingestion has already returned.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.persist != nil {
		a.persist.Stop(ctx)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.locker != nil && a.lockKey != "" {
		if err := a.locker.Unlock(ctx, a.lockKey); err != nil {
			a.logger.Warn("unlock failed", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}
