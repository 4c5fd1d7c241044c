package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NiftyPulse/internal/domain/models"
	pkgcache "NiftyPulse/pkg/cache"
)

func TestSQLiteJournalRecordAndList(t *testing.T) {
	j, err := NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	day := time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC)
	mk := func(id, ticker string, at time.Time) models.TradeIntent {
		return models.TradeIntent{
			ID: id, Instrument: ticker, Side: models.SideBuy, OptionType: models.OptionCall,
			Price: decimal.RequireFromString("22010.5"), Regime: models.RegimeCompleteBullish,
			Structure: models.RegimeBullish, BarTime: at.Unix(), CreatedAt: at,
		}
	}
	require.NoError(t, j.Record(ctx, mk("b", "NIFTY", day.Add(10*time.Minute))))
	require.NoError(t, j.Record(ctx, mk("a", "NIFTY", day.Add(time.Minute))))
	require.NoError(t, j.Record(ctx, mk("c", "BANKNIFTY", day.Add(time.Minute))))
	require.NoError(t, j.Record(ctx, mk("d", "NIFTY", day.Add(24*time.Hour))))

	got, err := j.List(ctx, "NIFTY", day, day.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("22010.5")))
	assert.Equal(t, models.OptionCall, got[0].OptionType)
}

func TestSQLiteJournalRecordIsIdempotentByID(t *testing.T) {
	j, err := NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()
	in := models.TradeIntent{ID: "x", Instrument: "NIFTY", Price: decimal.NewFromInt(1), BarTime: 100, CreatedAt: time.Unix(100, 0)}
	require.NoError(t, j.Record(ctx, in))
	require.NoError(t, j.Record(ctx, in))
	got, err := j.List(ctx, "NIFTY", time.Unix(0, 0), time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCacheRegimeStoreRoundTrip(t *testing.T) {
	mem := pkgcache.NewMemoryCache()
	defer mem.Close()
	store := NewCacheRegimeStore(mem, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SaveRegime(ctx, "NIFTY", models.RegimeBearish, 100))
	got, err := store.LoadRegimes(ctx, []string{"NIFTY", "BANKNIFTY"})
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Regime{"NIFTY": models.RegimeBearish}, got)
}

func TestBarsSchemaNamesTable(t *testing.T) {
	stmts := BarsSchema("bars_1m")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "bars_1m")
	assert.Contains(t, stmts[0], "ReplacingMergeTree")
}
