package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
	"NiftyPulse/pkg/metrics"
)

type memJournal struct {
	intents []models.TradeIntent
	err     error
}

func (j *memJournal) Record(_ context.Context, in models.TradeIntent) error {
	if j.err != nil {
		return j.err
	}
	j.intents = append(j.intents, in)
	return nil
}

func (j *memJournal) List(_ context.Context, ticker string, from, to time.Time) ([]models.TradeIntent, error) {
	var out []models.TradeIntent
	for _, in := range j.intents {
		bt := time.Unix(in.BarTime, 0)
		if in.Instrument == ticker && !bt.Before(from) && bt.Before(to) {
			out = append(out, in)
		}
	}
	return out, nil
}

type memPublisher struct {
	intents []models.TradeIntent
	bars    []models.Bar
	err     error
}

func (p *memPublisher) PublishBar(_ context.Context, _ string, _ drepo.Interval, b models.Bar) error {
	p.bars = append(p.bars, b)
	return p.err
}
func (p *memPublisher) PublishIntent(_ context.Context, in models.TradeIntent) error {
	if p.err != nil {
		return p.err
	}
	p.intents = append(p.intents, in)
	return nil
}
func (p *memPublisher) PublishEvent(context.Context, *models.MarketEvent) error { return p.err }
func (p *memPublisher) Close() error                                            { return nil }

func intent() models.TradeIntent {
	return models.TradeIntent{
		ID: "id-1", Instrument: "NIFTY", Side: models.SideBuy, OptionType: models.OptionCall,
		Price: decimal.NewFromInt(100), BarTime: 1717400000,
	}
}

func TestIntentDispatcherFansOut(t *testing.T) {
	j, p := &memJournal{}, &memPublisher{}
	d := NewIntentDispatcher(j, p, metrics.Nop{}, applogger.Nop())
	require.NoError(t, d.Submit(context.Background(), intent()))
	assert.Len(t, j.intents, 1)
	assert.Len(t, p.intents, 1)
}

func TestIntentDispatcherSinkFailureDoesNotBlockOthers(t *testing.T) {
	j, p := &memJournal{err: errors.New("disk full")}, &memPublisher{}
	d := NewIntentDispatcher(j, p, metrics.Nop{}, applogger.Nop())
	err := d.Submit(context.Background(), intent())
	require.Error(t, err)
	assert.Len(t, p.intents, 1)
}

func TestIntentDispatcherWithoutSinks(t *testing.T) {
	d := NewIntentDispatcher(nil, nil, metrics.Nop{}, applogger.Nop())
	require.NoError(t, d.Submit(context.Background(), intent()))
}
