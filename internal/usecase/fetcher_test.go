package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/normalize"
)

type stubProvider struct {
	raw        models.RawTable
	err        error
	panics     bool
	calls      int
	start, end string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchDaily(_ context.Context, _ string, _ models.MarketType, start, end string) (models.RawTable, error) {
	p.calls++
	p.start, p.end = start, end
	if p.panics {
		panic("provider exploded")
	}
	return p.raw, p.err
}

func newTestFetcher(market models.MarketType, p *stubProvider) *Fetcher {
	f := NewFetcher(domrepo.ProviderSet{market: p}, nil, nil, 365)
	f.now = func() time.Time { return time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC) }
	return f
}

func TestFetchDefaultsDateRange(t *testing.T) {
	p := &stubProvider{raw: normalize.Denormalize(models.MarketA, rising("600519", models.MarketA, 3))}
	res := newTestFetcher(models.MarketA, p).Fetch(context.Background(), "600519", models.MarketA, "", "")

	require.True(t, res.OK(), res.Err)
	assert.Equal(t, "20230701", p.start)
	assert.Equal(t, "20240630", p.end)
	assert.Equal(t, 3, res.Table.Len())
	assert.Equal(t, "600519", res.Table.Symbol)
	assert.Equal(t, models.MarketA, res.Table.Market)
}

func TestFetchCompactsExplicitDates(t *testing.T) {
	p := &stubProvider{}
	res := newTestFetcher(models.MarketETF, p).Fetch(context.Background(), "510300", models.MarketETF, "2024-01-01", "2024-03-31")
	require.True(t, res.OK())
	assert.Equal(t, "20240101", p.start)
	assert.Equal(t, "20240331", p.end)
	assert.True(t, res.Table.Empty())
}

func TestFetchAcceptsTimestampedDates(t *testing.T) {
	f := newTestFetcher(models.MarketA, &stubProvider{})
	for _, in := range []string{"2024-01-02 00:00:00", "2024-01-02T09:30:00Z", "2024/01/02", "20240102"} {
		start, end, from, _, err := f.Range(in, "2024-03-31")
		require.NoError(t, err, in)
		assert.Equal(t, "20240102", start, in)
		assert.Equal(t, "20240331", end, in)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from, in)
	}
}

func TestFetchDefaultsStartFromOldEndDate(t *testing.T) {
	p := &stubProvider{}
	res := newTestFetcher(models.MarketA, p).Fetch(context.Background(), "600519", models.MarketA, "", "2020-06-30")

	require.True(t, res.OK(), res.Err)
	assert.Equal(t, "20190701", p.start)
	assert.Equal(t, "20200630", p.end)
}

func TestFetchRejectsBadDates(t *testing.T) {
	p := &stubProvider{}
	f := newTestFetcher(models.MarketA, p)

	res := f.Fetch(context.Background(), "1", models.MarketA, "yesterday", "")
	require.ErrorIs(t, res.Err, models.ErrInvalidDate)

	res = f.Fetch(context.Background(), "1", models.MarketA, "20240301", "20240101")
	require.ErrorIs(t, res.Err, models.ErrInvalidDate)
	assert.Zero(t, p.calls)
}

func TestFetchFiltersRangeForHKAndUS(t *testing.T) {
	p := &stubProvider{raw: models.RawTable{
		Columns: []string{"Date", "Open", "High", "Low", "Close", "Volume"},
		Rows: [][]string{
			{"2024-01-03", "11", "12", "10", "11.5", "200"},
			{"2023-12-29", "9", "10", "8", "9.5", "100"},
			{"2024-01-02", "10", "11", "9", "10.5", "100"},
		},
	}}
	res := newTestFetcher(models.MarketUS, p).Fetch(context.Background(), "AAPL", models.MarketUS, "20240101", "20240102")

	require.True(t, res.OK(), res.Err)
	require.Equal(t, 1, res.Table.Len())
	bar := res.Table.Bars[0]
	assert.Equal(t, day0, bar.Date)
	assert.Equal(t, 10.5*100, bar.Amount)
}

func TestFetchWrapsProviderFaults(t *testing.T) {
	p := &stubProvider{err: errors.New("HTTP 503")}
	res := newTestFetcher(models.MarketA, p).Fetch(context.Background(), "1", models.MarketA, "", "")
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, models.ErrProviderFault)
	assert.Contains(t, res.Err.Error(), "HTTP 503")
	assert.Equal(t, "provider", models.ErrorKind(res.Err))

	p = &stubProvider{panics: true}
	res = newTestFetcher(models.MarketA, p).Fetch(context.Background(), "1", models.MarketA, "", "")
	assert.ErrorIs(t, res.Err, models.ErrProviderFault)
}

func TestFetchSchemaMismatch(t *testing.T) {
	p := &stubProvider{raw: models.RawTable{Rows: [][]string{{"2024-01-02", "1", "2"}}}}
	res := newTestFetcher(models.MarketA, p).Fetch(context.Background(), "1", models.MarketA, "", "")
	assert.ErrorIs(t, res.Err, models.ErrSchemaMismatch)
}

func TestFetchUnknownMarketProvider(t *testing.T) {
	res := newTestFetcher(models.MarketA, &stubProvider{}).Fetch(context.Background(), "0700", models.MarketHK, "", "")
	assert.ErrorIs(t, res.Err, models.ErrUnsupportedMarket)
}
