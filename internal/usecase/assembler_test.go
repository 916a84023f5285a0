package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
)

func row(date time.Time, close float64) models.IndicatorRow {
	r := models.IndicatorRow{MA5: 3, MA20: 2, MA60: 1, MACD: 0.2, Signal: 0.1, RSI: 55, VolumeMA: 100}
	r.Date = date
	r.Close = close
	r.Volume = 100
	return r
}

func testAssembler() *Assembler {
	a := NewAssembler(nil)
	a.now = func() time.Time { return time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC) }
	return a
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, models.TrendUp, ClassifyTrend(3, 2, 1))
	assert.Equal(t, models.TrendDown, ClassifyTrend(1, 2, 3))
	assert.Equal(t, models.TrendFlat, ClassifyTrend(2, 2, 1))
	assert.Equal(t, models.TrendFlat, ClassifyTrend(3, 1, 2))
	assert.Equal(t, models.TrendFlat, ClassifyTrend(3, 2, 0))
}

func TestClassifyMACDAndVolume(t *testing.T) {
	assert.Equal(t, models.SignalBuy, ClassifyMACD(1, 0.5))
	assert.Equal(t, models.SignalSell, ClassifyMACD(0.5, 1))
	assert.Equal(t, models.SignalHold, ClassifyMACD(1, 1))

	assert.Equal(t, models.VolumeHigh, ClassifyVolume(151, 100))
	assert.Equal(t, models.VolumeNormal, ClassifyVolume(150, 100))
	assert.Equal(t, models.VolumeLow, ClassifyVolume(49, 100))
	assert.Equal(t, models.VolumeNormal, ClassifyVolume(500, 0))
}

func TestAssembleProviderChangePctWins(t *testing.T) {
	prev := row(day0, 10)
	latest := row(day0.AddDate(0, 0, 1), 11)
	pct := 1.23
	latest.ChangePct = &pct
	ind := models.IndicatorTable{Rows: []models.IndicatorRow{prev, latest}}

	s, err := testAssembler().Assemble("600519", models.MarketA, models.CanonicalTable{}, ind, 72, "Buy")
	require.NoError(t, err)
	require.NotNil(t, s.ChangePercent)
	assert.Equal(t, 1.23, *s.ChangePercent)
	assert.Equal(t, 1.23, *s.PriceChange)
	assert.Equal(t, 1.0, s.PriceChangeValue)
	assert.Equal(t, "2024-01-03", s.PriceDate)
	assert.Equal(t, "2024-06-30", s.AnalysisDate)
	assert.Equal(t, models.TrendUp, s.MATrend)
	assert.Equal(t, models.SignalBuy, s.MACDSignal)
	assert.Equal(t, models.VolumeNormal, s.VolumeStatus)
	assert.Equal(t, 72, s.Score)
	assert.Equal(t, "Buy", s.Recommendation)
	assert.Equal(t, 11.0, s.Price)
}

func TestAssembleComputesChangePct(t *testing.T) {
	ind := models.IndicatorTable{Rows: []models.IndicatorRow{row(day0, 10), row(day0.AddDate(0, 0, 1), 11)}}
	s, err := testAssembler().Assemble("X", models.MarketUS, models.CanonicalTable{}, ind, 50, "Hold")
	require.NoError(t, err)
	require.NotNil(t, s.ChangePercent)
	assert.InDelta(t, 10.0, *s.ChangePercent, 1e-9)

	ind = models.IndicatorTable{Rows: []models.IndicatorRow{row(day0, 0), row(day0.AddDate(0, 0, 1), 11)}}
	s, err = testAssembler().Assemble("X", models.MarketUS, models.CanonicalTable{}, ind, 50, "Hold")
	require.NoError(t, err)
	assert.Nil(t, s.ChangePercent)
}

func TestAssembleSingleRow(t *testing.T) {
	ind := models.IndicatorTable{Rows: []models.IndicatorRow{row(day0, 10)}}
	s, err := testAssembler().Assemble("NEW", models.MarketHK, models.CanonicalTable{}, ind, 40, "Hold")
	require.NoError(t, err)
	assert.Zero(t, s.PriceChangeValue)
	require.NotNil(t, s.ChangePercent)
	assert.Zero(t, *s.ChangePercent)
}

func TestAssemblePriceDateFallbacks(t *testing.T) {
	ind := models.IndicatorTable{Rows: []models.IndicatorRow{row(time.Time{}, 10)}}
	table := rising("X", models.MarketA, 2)

	s, err := testAssembler().Assemble("X", models.MarketA, table, ind, 40, "Hold")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", s.PriceDate)

	s, err = testAssembler().Assemble("X", models.MarketA, models.CanonicalTable{}, ind, 40, "Hold")
	require.NoError(t, err)
	assert.Equal(t, s.AnalysisDate, s.PriceDate)
}

func TestAssembleNeedsRows(t *testing.T) {
	_, err := testAssembler().Assemble("X", models.MarketA, models.CanonicalTable{}, models.IndicatorTable{}, 0, "")
	assert.ErrorIs(t, err, models.ErrComputation)
}
