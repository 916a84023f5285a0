package normalize

import (
	"testing"
	"time"

	"StockPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func pct(v float64) *float64 { return &v }

func TestNormalizePositionalAShare(t *testing.T) {
	raw := models.RawTable{
		Columns: []string{"日期", "股票代码", "开盘", "收盘", "最高", "最低", "成交量", "成交额", "振幅", "涨跌幅", "涨跌额", "换手率"},
		Rows: [][]string{
			{"2024-01-03", "600519", "10.1", "10.4", "10.5", "10.0", "1200", "12480", "4.9", "2.97", "0.3", "0.8"},
			{"2024-01-02", "600519", "10.0", "10.1", "10.2", "9.9", "1000", "10100", "3.0", "-", "0.1", "0.7"},
		},
	}

	table, err := Normalize(models.MarketA, raw)
	require.NoError(t, err)
	require.Len(t, table.Bars, 2)

	first, second := table.Bars[0], table.Bars[1]
	assert.Equal(t, day(2024, 1, 2), first.Date)
	assert.Equal(t, day(2024, 1, 3), second.Date)
	assert.Nil(t, first.ChangePct, "placeholder change percent stays unset")
	require.NotNil(t, second.ChangePct)
	assert.InDelta(t, 2.97, *second.ChangePct, 1e-9)
	assert.InDelta(t, 10.4, second.Close, 1e-9)
	assert.InDelta(t, 12480, second.Amount, 1e-9)
	assert.InDelta(t, 0.8, second.Turnover, 1e-9)
}

func TestNormalizePositionalArityMismatch(t *testing.T) {
	cases := map[models.MarketType]models.RawTable{
		models.MarketA: {
			Columns: ExpectedColumns(models.MarketETF),
			Rows:    [][]string{{"2024-01-02", "1", "1", "1", "1", "1", "1", "1", "1", "1", "1"}},
		},
		models.MarketETF: {
			Columns: ExpectedColumns(models.MarketA),
			Rows:    [][]string{{"2024-01-02", "510300", "1", "1", "1", "1", "1", "1", "1", "1", "1", "1"}},
		},
		models.MarketLOF: {
			Rows: [][]string{{"2024-01-02", "1", "1"}},
		},
	}
	for market, raw := range cases {
		t.Run(string(market), func(t *testing.T) {
			table, err := Normalize(market, raw)
			require.ErrorIs(t, err, models.ErrSchemaMismatch)
			assert.True(t, table.Empty())
			assert.NotNil(t, table.Bars)
		})
	}
}

func TestNormalizeNamedFillsMissingWithZero(t *testing.T) {
	raw := models.RawTable{
		Columns: []string{"Date", "OPEN", "close", "Volume"},
		Rows: [][]string{
			{"2024-02-02", "5", "6", "100"},
			{"2024-02-01", "4", "5", "200"},
		},
	}

	hk, err := Normalize(models.MarketHK, raw)
	require.NoError(t, err)
	require.Len(t, hk.Bars, 2)
	assert.Equal(t, day(2024, 2, 1), hk.Bars[0].Date)
	assert.Zero(t, hk.Bars[0].High)
	assert.Zero(t, hk.Bars[0].Low)
	assert.Nil(t, hk.Bars[0].ChangePct)

	us, err := Normalize(models.MarketUS, raw)
	require.NoError(t, err)
	for _, table := range []models.CanonicalTable{hk, us} {
		assert.InDelta(t, 200*5.0, table.Bars[0].Amount, 1e-9, table.Market)
		assert.InDelta(t, 100*6.0, table.Bars[1].Amount, 1e-9, table.Market)
	}
}

func TestNormalizeNamedKeepsReportedAmount(t *testing.T) {
	raw := models.RawTable{
		Columns: []string{"date", "close", "volume", "amount"},
		Rows:    [][]string{{"2024-02-01", "5", "200", "999"}},
	}
	us, err := Normalize(models.MarketUS, raw)
	require.NoError(t, err)
	assert.InDelta(t, 999, us.Bars[0].Amount, 1e-9)
}

func TestNormalizeNamedWithoutDateColumn(t *testing.T) {
	raw := models.RawTable{Columns: []string{"open", "close"}, Rows: [][]string{{"1", "2"}}}
	table, err := Normalize(models.MarketUS, raw)
	require.ErrorIs(t, err, models.ErrSchemaMismatch)
	assert.True(t, table.Empty())
}

func TestNormalizeEmptyRawIsNotAnError(t *testing.T) {
	for _, m := range models.Markets {
		table, err := Normalize(m, models.RawTable{})
		require.NoError(t, err)
		assert.True(t, table.Empty())
	}
}

func TestNormalizeDeduplicatesDates(t *testing.T) {
	raw := models.RawTable{
		Columns: namedColumns,
		Rows: [][]string{
			{"2024-02-01", "1", "1", "1", "1", "10", "10"},
			{"2024-02-01", "2", "2", "2", "2", "20", "40"},
			{"2024-01-31", "3", "3", "3", "3", "30", "90"},
		},
	}
	table, err := Normalize(models.MarketHK, raw)
	require.NoError(t, err)
	require.Len(t, table.Bars, 2)
	assert.Equal(t, day(2024, 1, 31), table.Bars[0].Date)
	assert.InDelta(t, 2, table.Bars[1].Close, 1e-9, "last record for a date wins")
}

func TestNormalizeUnsupportedMarket(t *testing.T) {
	_, err := Normalize(models.MarketType("XX"), models.RawTable{Rows: [][]string{{"x"}}})
	require.ErrorIs(t, err, models.ErrUnsupportedMarket)
}

func TestNormalizeRoundTripIsIdentity(t *testing.T) {
	canonical := models.CanonicalTable{
		Symbol: "600519",
		Bars: []models.DailyBar{
			{Date: day(2024, 3, 1), Open: 1.1, Close: 1.2, High: 1.3, Low: 1.0, Volume: 100, Amount: 120, Amplitude: 2.5, ChangePct: pct(0.5), ChangeAbs: 0.01, Turnover: 0.2},
			{Date: day(2024, 3, 4), Open: 1.2, Close: 1.25, High: 1.3, Low: 1.15, Volume: 150, Amount: 187.5, Amplitude: 1.1, ChangePct: pct(-0.25), ChangeAbs: -0.003, Turnover: 0.3},
		},
	}
	named := models.CanonicalTable{
		Bars: []models.DailyBar{
			{Date: day(2024, 3, 1), Open: 1.1, Close: 1.2, High: 1.3, Low: 1.0, Volume: 100, Amount: 120},
			{Date: day(2024, 3, 4), Open: 1.2, Close: 1.25, High: 1.3, Low: 1.15, Volume: 150, Amount: 187.5},
		},
	}

	for _, m := range models.Markets {
		src := canonical
		if m == models.MarketHK || m == models.MarketUS {
			src = named
		}
		once, err := Normalize(m, Denormalize(m, src))
		require.NoError(t, err, m)
		twice, err := Normalize(m, Denormalize(m, once))
		require.NoError(t, err, m)
		assert.Equal(t, src.Bars, once.Bars, m)
		assert.Equal(t, once.Bars, twice.Bars, m)
	}
}
