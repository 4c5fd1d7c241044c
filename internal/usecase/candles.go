package usecase

import (
	"context"
	"fmt"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	xutil "NiftyPulse/pkg/util"
)

// CandlesUseCase provides business logic for retrieving stored bars.
type CandlesUseCase struct {
	store domrepo.BarStore
	now   func() time.Time
}

func NewCandlesUseCase(store domrepo.BarStore) *CandlesUseCase {
	return &CandlesUseCase{store: store, now: time.Now}
}

type GetCandlesParams struct {
	Symbol   string
	Date     string // YYYY-MM-DD in IST, empty for today
	Interval domrepo.Interval
	Limit    int
}

type GetCandlesResult struct {
	Symbol   string       `json:"symbol"`
	Interval string       `json:"interval"`
	From     time.Time    `json:"from"`
	To       time.Time    `json:"to"`
	Count    int          `json:"count"`
	Candles  []models.Bar `json:"candles"`
}

// GetCandles returns the bars of one trading session, oldest first.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	day, err := xutil.ParseDay(p.Date, uc.now())
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", p.Date, err)
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}
	iv := domrepo.NormalizeInterval(string(p.Interval))
	from, to := xutil.SessionBounds(day)

	candles, err := uc.store.QueryBars(ctx, p.Symbol, iv, from, to, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[:p.Limit]
	}
	if candles == nil {
		candles = []models.Bar{}
	}

	return &GetCandlesResult{
		Symbol:   p.Symbol,
		Interval: string(iv),
		From:     from,
		To:       to,
		Count:    len(candles),
		Candles:  candles,
	}, nil
}
