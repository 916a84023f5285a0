package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","gmtoffset":-18000},
"timestamp":[1704205800,1704292200,1704378600],
"indicators":{"quote":[{"open":[187.15,184.22,null],"high":[188.44,185.88,null],
"low":[183.89,183.43,null],"close":[185.64,184.25,null],"volume":[82488700,58414500,null]}]}}],"error":null}}`

func TestFetchDailyUS(t *testing.T) {
	var path, rng string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		rng = r.URL.Query().Get("range")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(100), WithClock(func() time.Time { return now }))
	raw, err := c.FetchDaily(context.Background(), "aapl", models.MarketUS, "20240101", "20240601")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", path)
	assert.Equal(t, "1y", rng)
	require.Len(t, raw.Rows, 2, "null close rows are dropped")
	assert.Equal(t, "2024-01-02", raw.Rows[0][0])

	table, err := normalize.Normalize(models.MarketUS, raw)
	require.NoError(t, err)
	require.Len(t, table.Bars, 2)
	assert.InDelta(t, 185.64*82488700, table.Bars[0].Amount, 1e-3)
	assert.Nil(t, table.Bars[0].ChangePct)
}

func TestFetchDailyChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchDaily(context.Background(), "ZZZZ", models.MarketUS, "20240101", "20240601")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestFetchDailyRejectsDomesticMarkets(t *testing.T) {
	_, err := NewClient().FetchDaily(context.Background(), "600519", models.MarketA, "", "")
	require.ErrorIs(t, err, models.ErrUnsupportedMarket)
}

func TestTicker(t *testing.T) {
	assert.Equal(t, "0700.HK", Ticker("00700", models.MarketHK))
	assert.Equal(t, "0700.HK", Ticker("700", models.MarketHK))
	assert.Equal(t, "9988.HK", Ticker("9988.hk", models.MarketHK))
	assert.Equal(t, "BRK-B", Ticker("brk.b", models.MarketUS))
}

func TestRangeFor(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient(WithClock(func() time.Time { return now }))
	assert.Equal(t, Range1y, c.rangeFor("20230701"))
	assert.Equal(t, Range2y, c.rangeFor("20221201"))
	assert.Equal(t, Range5y, c.rangeFor("2020-01-01"))
	assert.Equal(t, RangeMax, c.rangeFor("19900101"))
	assert.Equal(t, Range1y, c.rangeFor("garbage"))
}
