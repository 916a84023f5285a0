package indicators

import (
	"math"
	"testing"
	"time"

	"StockPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes ...float64) models.CanonicalTable {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t := models.CanonicalTable{Symbol: "T", Market: models.MarketUS}
	for i, c := range closes {
		t.Bars = append(t.Bars, models.DailyBar{
			Date: start.AddDate(0, 0, i), Open: c, Close: c, High: c + 1, Low: c - 1, Volume: 100,
		})
	}
	return t
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []float64{0, 0, 2, 3, 4}, got)
}

func TestEMASeedsWithFirstValue(t *testing.T) {
	got := EMA([]float64{10, 10, 10}, 5)
	assert.Equal(t, []float64{10, 10, 10}, got)

	got = EMA([]float64{0, 3}, 2) // k = 2/3
	assert.InDelta(t, 2.0, got[1], 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(i + 1)
	}
	rsi := RSI(up, 14)
	assert.Zero(t, rsi[13])
	assert.InDelta(t, 100, rsi[14], 1e-9)

	flat := make([]float64, 20)
	assert.InDelta(t, 50, RSI(flat, 14)[19], 1e-9)
}

func TestRealizedVolatilityOfConstantReturns(t *testing.T) {
	rets := make([]float64, 30)
	for i := range rets {
		rets[i] = 0.01
	}
	assert.InDelta(t, 0, RealizedVolatility(rets, 20, TradingDaysPerYear), 1e-9)
	assert.Zero(t, RealizedVolatility(rets[:10], 20, TradingDaysPerYear))
}

func TestLogReturnsSkipsNonPositive(t *testing.T) {
	got := LogReturns([]float64{1, math.E, 0, 2})
	require.Len(t, got, 3)
	assert.InDelta(t, 1, got[0], 1e-12)
	assert.Zero(t, got[1])
	assert.Zero(t, got[2])
}

func TestComputeShapesTable(t *testing.T) {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	table, err := NewCalculator().Compute(barsFromCloses(closes...))
	require.NoError(t, err)
	require.Len(t, table.Rows, 70)
	assert.Equal(t, "T", table.Symbol)

	last := table.Rows[69]
	assert.InDelta(t, 167, last.MA5, 1e-9)
	assert.InDelta(t, 159.5, last.MA20, 1e-9)
	assert.InDelta(t, 139.5, last.MA60, 1e-9)
	assert.Greater(t, last.MACD, 0.0)
	assert.InDelta(t, last.MACD-last.Signal, last.Histogram, 1e-12)
	assert.InDelta(t, 100, last.RSI, 1e-9)
	assert.InDelta(t, 1, last.VolumeRatio, 1e-12)
	assert.InDelta(t, 2, last.ATR, 1e-9)
	assert.Greater(t, last.Volatility, 0.0)

	first := table.Rows[0]
	assert.Zero(t, first.MA5)
	assert.Zero(t, first.VolumeMA)
	assert.Zero(t, first.Volatility)
}

func TestComputeShortHistory(t *testing.T) {
	table, err := NewCalculator().Compute(barsFromCloses(10))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Zero(t, table.Rows[0].MA5)
	assert.InDelta(t, 10, table.Rows[0].EMA12, 1e-12)
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := NewCalculator().Compute(models.CanonicalTable{})
	require.ErrorIs(t, err, models.ErrComputation)

	_, err = NewCalculator().Compute(barsFromCloses(1, math.NaN()))
	require.ErrorIs(t, err, models.ErrComputation)
}
