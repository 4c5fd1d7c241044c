package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	dservice "NiftyPulse/internal/domain/service"
)

// ErrNotFound marks reads with nothing to return.
var ErrNotFound = errors.New("not found")

// StructureReader exposes the last detected structure per instrument.
type StructureReader interface {
	Last(symbol string) (models.MarketStructure, bool)
}

// ChainReader exposes the snapshot store.
type ChainReader interface {
	Rows(symbol string) []models.OptionChainRow
	Walls(symbol string, spot float64) (above, below float64)
}

// MarketViewUseCase assembles in-memory derived state with the stored last
// bar and the mirrored regime.
type MarketViewUseCase struct {
	tracker   dservice.RegimeTracker
	osc       dservice.Oscillator
	structure StructureReader
	chains    ChainReader
	store     domrepo.BarStore
	regimes   domrepo.RegimeStore
	interval  domrepo.Interval
	timeout   time.Duration
}

// NewMarketViewUseCase accepts a nil regimes store.
func NewMarketViewUseCase(tracker dservice.RegimeTracker, osc dservice.Oscillator, structure StructureReader,
	chains ChainReader, store domrepo.BarStore, regimes domrepo.RegimeStore, interval domrepo.Interval) *MarketViewUseCase {
	return &MarketViewUseCase{
		tracker:   tracker,
		osc:       osc,
		structure: structure,
		chains:    chains,
		store:     store,
		regimes:   regimes,
		interval:  interval,
		timeout:   5 * time.Second,
	}
}

func (uc *MarketViewUseCase) GetView(ctx context.Context, symbol string) (*models.MarketView, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.MarketView{
		Symbol: symbol,
		Regime: uc.tracker.Current(symbol),
		Errors: map[string]string{},
	}
	if v, ok := uc.osc.Value(symbol); ok {
		res.NetVolRSI = &v
	}
	if st, ok := uc.structure.Last(symbol); ok {
		res.Structure = &st
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		to := time.Now()
		bars, err := uc.store.QueryBars(ctx, symbol, uc.interval, to.Add(-24*time.Hour), to, 5000)
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("no stored bars")
		}
		if err != nil {
			ch <- item{"last_bar", nil, err}
			return
		}
		ch <- item{"last_bar", bars[len(bars)-1], nil}
	}()
	if uc.regimes != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := uc.regimes.LoadRegimes(ctx, []string{symbol})
			ch <- item{"mirrored_regime", m[symbol], err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "last_bar":
			b := it.val.(models.Bar)
			res.LastBar = &b
		case "mirrored_regime":
			res.Mirrored = it.val.(models.Regime)
		}
	}

	if res.LastBar != nil {
		res.OIWallAbove, res.OIWallBelow = uc.chains.Walls(symbol, res.LastBar.Close)
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

// GetChain returns the cached rows and walls around the last stored close.
func (uc *MarketViewUseCase) GetChain(ctx context.Context, symbol string) (*models.ChainView, error) {
	rows := uc.chains.Rows(symbol)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no option chain cached for %s", ErrNotFound, symbol)
	}
	out := &models.ChainView{Symbol: symbol, Rows: rows}
	to := time.Now()
	if bars, err := uc.store.QueryBars(ctx, symbol, uc.interval, to.Add(-24*time.Hour), to, 5000); err == nil && len(bars) > 0 {
		out.Spot = bars[len(bars)-1].Close
		out.OIWallAbove, out.OIWallBelow = uc.chains.Walls(symbol, out.Spot)
	}
	return out, nil
}
