package scoring

import (
	"testing"

	"StockPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(symbol string, rows ...models.IndicatorRow) models.IndicatorTable {
	return models.IndicatorTable{Symbol: symbol, Rows: rows}
}

func bullish() models.IndicatorRow {
	r := models.IndicatorRow{MA5: 12, MA20: 11, MA60: 10, RSI: 55, MACD: 1, Signal: 0.5, Histogram: 0.5, VolumeRatio: 2, Volatility: 0.15}
	r.Close = 12.5
	return r
}

func bearish() models.IndicatorRow {
	r := models.IndicatorRow{MA5: 8, MA20: 9, MA60: 10, RSI: 85, MACD: -1, Signal: -0.5, Histogram: -0.5, VolumeRatio: 2, Volatility: 0.9}
	r.Close = 7
	return r
}

func TestScoreBounds(t *testing.T) {
	s := NewScorer()

	prev := bullish()
	prev.Close = 12
	prev.Histogram = 0.4
	hi, err := s.Score(table("UP", prev, bullish()))
	require.NoError(t, err)
	assert.Equal(t, 100, hi)

	prevBear := bearish()
	prevBear.Close = 8
	lo, err := s.Score(table("DOWN", prevBear, bearish()))
	require.NoError(t, err)
	assert.Equal(t, 8, lo)
	assert.Less(t, lo, hi)
}

func TestScoreEmptyTable(t *testing.T) {
	_, err := NewScorer().Score(models.IndicatorTable{})
	require.ErrorIs(t, err, models.ErrComputation)
}

func TestRecommend(t *testing.T) {
	s := NewScorer()
	cases := map[int]string{100: StrongBuy, 80: StrongBuy, 79: Buy, 60: Buy, 59: Hold, 40: Hold, 39: Sell, 20: Sell, 19: StrongSell, 0: StrongSell}
	for score, want := range cases {
		assert.Equal(t, want, s.Recommend(score), score)
	}
}

func TestRankOrdersByScoreThenSymbol(t *testing.T) {
	s := NewScorer()
	ranked, failed := Rank(s, map[string]models.IndicatorTable{
		"B":    table("B", bullish()),
		"A":    table("A", bullish()),
		"C":    table("C", bearish()),
		"NONE": {},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "A", ranked[0].Symbol)
	assert.Equal(t, "B", ranked[1].Symbol)
	assert.Equal(t, "C", ranked[2].Symbol)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, s.Recommend(ranked[2].Score), ranked[2].Recommendation)
	require.Contains(t, failed, "NONE")
}
