package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"StockPulse/internal/domain/models"
)

func TestBuildInsert(t *testing.T) {
	pct := 1.5
	bars := []models.DailyBar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 10, ChangePct: &pct},
		{},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 11},
	}
	q, args := buildInsert("stockpulse.daily_bars", "600519", models.MarketA, bars)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO stockpulse.daily_bars ("+barColumns+") VALUES "))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	assert.Len(t, args, 26)
	assert.Equal(t, "A", args[0])
	assert.Equal(t, "600519", args[1])
	assert.Equal(t, 1.5, args[10])
	assert.Nil(t, args[23])

	q, args = buildInsert("t", "x", models.MarketA, []models.DailyBar{{}})
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestBuildSelect(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	q, args := buildSelect("db.daily_bars", "AAPL", models.MarketUS, from, to, 100)
	assert.Contains(t, q, "FROM db.daily_bars FINAL")
	assert.Contains(t, q, "ORDER BY date ASC")
	assert.True(t, strings.HasSuffix(q, "LIMIT ?"))
	assert.Equal(t, []interface{}{"US", "AAPL", from, to, 100}, args)

	q, args = buildSelect("db.daily_bars", "AAPL", models.MarketUS, from, to, 0)
	assert.NotContains(t, q, "LIMIT")
	assert.Len(t, args, 4)
}

func TestBarArchiveDDL(t *testing.T) {
	stmts := BarArchiveDDL("stockpulse")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "stockpulse.daily_bars")
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
	assert.Contains(t, stmts[1], "ORDER BY (market, symbol, date)")
}
