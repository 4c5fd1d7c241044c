package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS bars (
    ticker   TEXT        NOT NULL,
    venue    TEXT        NOT NULL,
    interval TEXT        NOT NULL,
    ts       TIMESTAMPTZ NOT NULL,
    open     DOUBLE PRECISION NOT NULL,
    high     DOUBLE PRECISION NOT NULL,
    low      DOUBLE PRECISION NOT NULL,
    close    DOUBLE PRECISION NOT NULL,
    volume   BIGINT      NOT NULL,
    PRIMARY KEY (ticker, venue, interval, ts)
);`

const pgUpsert = `
INSERT INTO bars(ticker, venue, interval, ts, open, high, low, close, volume)
VALUES($1, $2, $3, to_timestamp($4), $5, $6, $7, $8, $9)
ON CONFLICT (ticker, venue, interval, ts) DO UPDATE
SET open=EXCLUDED.open,
    high=EXCLUDED.high,
    low=EXCLUDED.low,
    close=EXCLUDED.close,
    volume=EXCLUDED.volume;`

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	PoolMax  int
}

// PGBarStore implements BarStore on Postgres with upsert semantics.
type PGBarStore struct {
	pool *pgxpool.Pool
}

func NewPGBarStore(ctx context.Context, cfg PostgresConfig) (*PGBarStore, error) {
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.PoolMax > 0 {
		pcfg.MaxConns = int32(cfg.PoolMax)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PGBarStore{pool: pool}, nil
}

func (s *PGBarStore) StoreBar(ctx context.Context, ticker, venue string, interval domrepo.Interval, b models.Bar) error {
	_, err := s.pool.Exec(ctx, pgUpsert, ticker, venue, string(interval), b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		return fmt.Errorf("postgres store bar: %w", err)
	}
	return nil
}

// StoreBars sends all upserts in one pgx batch.
func (s *PGBarStore) StoreBars(ctx context.Context, ticker, venue string, interval domrepo.Interval, bars []models.Bar) error {
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(pgUpsert, ticker, venue, string(interval), b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store bars: %w", err)
	}
	return nil
}

func (s *PGBarStore) QueryBars(ctx context.Context, ticker string, interval domrepo.Interval, from, to time.Time, limit int) ([]models.Bar, error) {
	if limit <= 0 {
		limit = maxQueryBars
	}
	rows, err := s.pool.Query(ctx, `
        SELECT ts, open, high, low, close, volume FROM bars
        WHERE ticker = $1 AND interval = $2 AND ts >= $3 AND ts <= $4
        ORDER BY ts ASC LIMIT $5`, ticker, string(interval), from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()
	var out []models.Bar
	for rows.Next() {
		var ts time.Time
		b := models.Bar{Symbol: ticker}
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = ts.Unix()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGBarStore) Health(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PGBarStore) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ domrepo.BarStore      = (*PGBarStore)(nil)
	_ domrepo.BarBatchStore = (*PGBarStore)(nil)
)
