package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	applogger "StockPulse/pkg/logger"
)

const barsTable = "daily_bars"

// BarArchiveDDL returns the idempotent schema for the bar archive in database db.
// Re-fetched bars replace older copies on merge.
func BarArchiveDDL(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	market LowCardinality(String),
	symbol String,
	date Date,
	open Float64,
	close Float64,
	high Float64,
	low Float64,
	volume Float64,
	amount Float64,
	amplitude Float64,
	change_pct Nullable(Float64),
	change_abs Float64,
	turnover Float64,
	ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY toYear(date)
ORDER BY (market, symbol, date)`, db, barsTable),
	}
}

// ClickHouseBarArchive mirrors canonical bars into ClickHouse.
type ClickHouseBarArchive struct {
	db     *sql.DB
	table  string
	logger *applogger.Logger
}

func NewClickHouseBarArchive(db *sql.DB, database string, logger *applogger.Logger) *ClickHouseBarArchive {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &ClickHouseBarArchive{db: db, table: database + "." + barsTable, logger: logger}
}

var _ domrepo.BarArchive = (*ClickHouseBarArchive)(nil)

const barColumns = "market, symbol, date, open, close, high, low, volume, amount, amplitude, change_pct, change_abs, turnover"

// chunk size per multi-row INSERT
const barChunkSize = 2000

func (a *ClickHouseBarArchive) StoreBars(ctx context.Context, table models.CanonicalTable) error {
	if table.Empty() {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(table.Bars); lo += barChunkSize {
		hi := min(lo+barChunkSize, len(table.Bars))
		q, args := buildInsert(a.table, table.Symbol, table.Market, table.Bars[lo:hi])
		if q == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store bars %s/%s: %w", table.Market, table.Symbol, err)
		}
	}
	a.logger.Debug("bars archived",
		applogger.Symbol(table.Symbol),
		applogger.Market(table.Market.String()),
		applogger.Int("rows", table.Len()),
		applogger.Duration("took", time.Since(start)),
	)
	return nil
}

func buildInsert(table, symbol string, market models.MarketType, bars []models.DailyBar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*13)
	for _, b := range bars {
		if b.Date.IsZero() {
			continue
		}
		var pct interface{}
		if b.ChangePct != nil {
			pct = *b.ChangePct
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			string(market), symbol, b.Date,
			b.Open, b.Close, b.High, b.Low,
			b.Volume, b.Amount, b.Amplitude,
			pct, b.ChangeAbs, b.Turnover,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, barColumns, strings.Join(values, ",")), args
}

// QueryBars returns archived bars ascending by date. A non-positive limit means no limit.
func (a *ClickHouseBarArchive) QueryBars(ctx context.Context, symbol string, market models.MarketType, from, to time.Time, limit int) (models.CanonicalTable, error) {
	q, args := buildSelect(a.table, symbol, market, from, to, limit)
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return models.CanonicalTable{}, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := models.CanonicalTable{Symbol: symbol, Market: market, Bars: []models.DailyBar{}}
	for rows.Next() {
		var (
			b   models.DailyBar
			pct sql.NullFloat64
		)
		if err := rows.Scan(&b.Date, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume, &b.Amount, &b.Amplitude, &pct, &b.ChangeAbs, &b.Turnover); err != nil {
			return models.CanonicalTable{}, fmt.Errorf("scan bar: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			b.ChangePct = &v
		}
		b.Date = b.Date.UTC()
		out.Bars = append(out.Bars, b)
	}
	return out, rows.Err()
}

func buildSelect(table, symbol string, market models.MarketType, from, to time.Time, limit int) (string, []interface{}) {
	q := fmt.Sprintf(`SELECT date, open, close, high, low, volume, amount, amplitude, change_pct, change_abs, turnover
FROM %s FINAL
WHERE market = ? AND symbol = ? AND date >= ? AND date <= ?
ORDER BY date ASC`, table)
	args := []interface{}{string(market), symbol, from, to}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return q, args
}

func (a *ClickHouseBarArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
