package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	pkgch "NiftyPulse/pkg/clickhouse"
	applogger "NiftyPulse/pkg/logger"
)

const maxQueryBars = 5000

// BarsSchema creates the bars table. ReplacingMergeTree collapses re-stored
// bars on (ticker, venue, interval, ts), keeping the latest ingested row.
func BarsSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker      LowCardinality(String),
            venue       LowCardinality(String),
            interval    LowCardinality(String),
            ts          DateTime('Asia/Kolkata'),
            open        Float64,
            high        Float64,
            low         Float64,
            close       Float64,
            volume      Int64,
            ingested_at DateTime64(3) DEFAULT now64(3)
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        PARTITION BY toYYYYMM(ts)
        ORDER BY (ticker, venue, interval, ts)
    `, table)}
}

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHBarStore {
	if table == "" {
		table = "bars"
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: ch.DB(), table: table, l: l}
}

func (s *CHBarStore) StoreBar(ctx context.Context, ticker, venue string, interval domrepo.Interval, b models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (ticker, venue, interval, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, ticker, venue, string(interval), b.Time(), b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		return fmt.Errorf("clickhouse store bar: %w", err)
	}
	return nil
}

// StoreBars inserts in multi-row chunks to reduce round-trips.
func (s *CHBarStore) StoreBars(ctx context.Context, ticker, venue string, interval domrepo.Interval, bars []models.Bar) error {
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, ticker, venue, string(interval), b.Time(), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, venue, interval, ts, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("clickhouse store bars: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) QueryBars(ctx context.Context, ticker string, interval domrepo.Interval, from, to time.Time, limit int) ([]models.Bar, error) {
	if limit <= 0 {
		limit = maxQueryBars
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ? AND interval = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(interval), from, to, limit)
	if err != nil {
		s.l.Error("clickhouse query_bars error",
			applogger.String("symbol", ticker),
			applogger.String("interval", string(interval)),
			applogger.Error(err))
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 400)
	for rows.Next() {
		var ts time.Time
		b := models.Bar{Symbol: ticker}
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = ts.Unix()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse query_bars ok",
		applogger.String("symbol", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHBarStore) Close() error { return nil }

var (
	_ domrepo.BarStore      = (*CHBarStore)(nil)
	_ domrepo.BarBatchStore = (*CHBarStore)(nil)
)
