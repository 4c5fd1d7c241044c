// Package pipeline dispatches market events through an ordered chain of
// stateful handlers.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// Handler consumes one event. Handlers ignore events that lack the fields
// they need.
type Handler interface {
	Name() string
	OnEvent(ctx context.Context, ev *models.MarketEvent) error
}

// Pipeline runs handlers in registration order. A failing handler never
// stops the ones after it.
type Pipeline struct {
	handlers []Handler
	logger   *applogger.Logger
	metrics  drepo.Metrics
}

func New(logger *applogger.Logger, metrics drepo.Metrics, handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: handlers, logger: logger, metrics: metrics}
}

// Handlers returns the registered chain in dispatch order.
func (p *Pipeline) Handlers() []Handler {
	out := make([]Handler, len(p.handlers))
	copy(out, p.handlers)
	return out
}

// Dispatch delivers ev to every handler and returns the number of handlers
// that failed.
func (p *Pipeline) Dispatch(ctx context.Context, ev *models.MarketEvent) int {
	if ev == nil {
		return 0
	}
	start := time.Now()
	failed := 0
	for _, h := range p.handlers {
		if err := p.run(ctx, h, ev); err != nil {
			failed++
			p.metrics.RecordHandlerError(h.Name())
			p.logger.Error("handler failed",
				applogger.String("handler", h.Name()),
				applogger.String("symbol", ev.Symbol),
				applogger.String("kind", string(ev.Kind)),
				applogger.Int64("timestamp", ev.Timestamp),
				applogger.Error(err))
		}
	}
	p.metrics.RecordEventDispatched(ev.Symbol, string(ev.Kind))
	p.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	return failed
}

func (p *Pipeline) run(ctx context.Context, h Handler, ev *models.MarketEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.OnEvent(ctx, ev)
}
