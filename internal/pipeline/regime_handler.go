package pipeline

import (
	"context"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	"NiftyPulse/internal/services/regime"
	applogger "NiftyPulse/pkg/logger"
)

// RegimeHandler makes sure every sentiment-bearing event carries a label and
// commits it as the instrument's current regime.
type RegimeHandler struct {
	tracker *regime.Tracker
	store   drepo.RegimeStore
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewRegimeHandler accepts a nil store when regimes are not mirrored.
func NewRegimeHandler(tracker *regime.Tracker, store drepo.RegimeStore, metrics drepo.Metrics, logger *applogger.Logger) *RegimeHandler {
	return &RegimeHandler{tracker: tracker, store: store, metrics: metrics, logger: logger}
}

func (h *RegimeHandler) Name() string { return "regime" }

func (h *RegimeHandler) OnEvent(ctx context.Context, ev *models.MarketEvent) error {
	if ev.Sentiment == nil {
		return nil
	}
	if ev.Kind != models.EventMarketUpdate && ev.Kind != models.EventSentimentUpdate {
		return nil
	}
	resolved := regime.Resolve(*ev.Sentiment)
	ev.Sentiment = &resolved

	prev := h.tracker.Current(ev.Symbol)
	h.tracker.Commit(ev.Symbol, resolved.Regime)
	h.metrics.RecordRegime(ev.Symbol, resolved.Regime.Score())
	if prev != resolved.Regime {
		h.logger.Info("regime changed",
			applogger.String("symbol", ev.Symbol),
			applogger.String("from", string(prev)),
			applogger.String("to", string(resolved.Regime)),
			applogger.Float64("net_vol_rsi", resolved.NetVolRSI))
	}

	if h.store != nil {
		if err := h.store.SaveRegime(ctx, ev.Symbol, resolved.Regime, ev.Timestamp); err != nil {
			h.metrics.RecordError("regime_mirror")
			h.logger.Warn("regime mirror failed",
				applogger.String("symbol", ev.Symbol),
				applogger.Error(err))
		}
	}
	return nil
}
