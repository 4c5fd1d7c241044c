package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
)

// intentRow is the persisted form of a TradeIntent.
type intentRow struct {
	ID         string `gorm:"primaryKey"`
	Instrument string `gorm:"index:idx_intent_instrument_bar"`
	Side       string
	OptionType string
	Price      string
	Regime     string
	Structure  string
	BarTime    int64 `gorm:"index:idx_intent_instrument_bar"`
	CreatedAt  time.Time
}

func (intentRow) TableName() string { return "trade_intents" }

// SQLiteJournal keeps trade intents in a local SQLite file (pure Go driver).
type SQLiteJournal struct {
	db *gorm.DB
}

// NewSQLiteJournal opens path, or an in-memory database for ":memory:".
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	if err := db.AutoMigrate(&intentRow{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Record(ctx context.Context, in models.TradeIntent) error {
	row := intentRow{
		ID:         in.ID,
		Instrument: in.Instrument,
		Side:       string(in.Side),
		OptionType: string(in.OptionType),
		Price:      in.Price.String(),
		Regime:     string(in.Regime),
		Structure:  string(in.Structure),
		BarTime:    in.BarTime,
		CreatedAt:  in.CreatedAt,
	}
	if err := j.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// List returns intents whose bar time falls in [from, to), oldest first.
func (j *SQLiteJournal) List(ctx context.Context, ticker string, from, to time.Time) ([]models.TradeIntent, error) {
	var rows []intentRow
	err := j.db.WithContext(ctx).
		Where("instrument = ? AND bar_time >= ? AND bar_time < ?", ticker, from.Unix(), to.Unix()).
		Order("bar_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	out := make([]models.TradeIntent, 0, len(rows))
	for _, r := range rows {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("journal price %s: %w", r.ID, err)
		}
		out = append(out, models.TradeIntent{
			ID:         r.ID,
			Instrument: r.Instrument,
			Side:       models.Side(r.Side),
			OptionType: models.OptionType(r.OptionType),
			Price:      price,
			Regime:     models.Regime(r.Regime),
			Structure:  models.Regime(r.Structure),
			BarTime:    r.BarTime,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (j *SQLiteJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ domrepo.SignalJournal = (*SQLiteJournal)(nil)
