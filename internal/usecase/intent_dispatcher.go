package usecase

import (
	"context"
	"errors"
	"fmt"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// IntentDispatcher is the OrderExecutor of this service: it journals,
// publishes and logs intents. It never talks to a broker.
type IntentDispatcher struct {
	journal drepo.SignalJournal
	pub     drepo.Publisher
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewIntentDispatcher accepts nil journal or publisher to disable that sink.
func NewIntentDispatcher(journal drepo.SignalJournal, pub drepo.Publisher, metrics drepo.Metrics, logger *applogger.Logger) *IntentDispatcher {
	return &IntentDispatcher{journal: journal, pub: pub, metrics: metrics, logger: logger}
}

// Submit fans the intent out to every sink. One failing sink does not stop
// the others; the joined error is returned.
func (d *IntentDispatcher) Submit(ctx context.Context, in models.TradeIntent) error {
	d.logger.Info("signal",
		applogger.String("id", in.ID),
		applogger.String("symbol", in.Instrument),
		applogger.String("side", string(in.Side)),
		applogger.String("option_type", string(in.OptionType)),
		applogger.String("price", in.Price.String()),
		applogger.String("regime", string(in.Regime)),
		applogger.String("structure", string(in.Structure)),
		applogger.Int64("bar_ts", in.BarTime))

	var errs []error
	if d.journal != nil {
		if err := d.journal.Record(ctx, in); err != nil {
			d.metrics.RecordError("journal")
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if d.pub != nil {
		if err := d.pub.PublishIntent(ctx, in); err != nil {
			d.metrics.RecordError("publish_intent")
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		d.logger.Error("intent sink failed", applogger.String("id", in.ID), applogger.Error(err))
		return err
	}
	return nil
}

var _ drepo.OrderExecutor = (*IntentDispatcher)(nil)
