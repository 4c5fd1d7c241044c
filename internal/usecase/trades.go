package usecase

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	xutil "NiftyPulse/pkg/util"
)

// TradesUseCase lists journaled trade intents.
type TradesUseCase struct {
	journal domrepo.SignalJournal
	now     func() time.Time
}

func NewTradesUseCase(journal domrepo.SignalJournal) *TradesUseCase {
	return &TradesUseCase{journal: journal, now: time.Now}
}

// GetTrades returns the intents of one IST calendar day.
func (uc *TradesUseCase) GetTrades(ctx context.Context, symbol, date string) ([]models.TradeIntent, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	day, err := xutil.ParseDay(date, uc.now())
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	out, err := uc.journal.List(ctx, symbol, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	if out == nil {
		out = []models.TradeIntent{}
	}
	return out, nil
}
