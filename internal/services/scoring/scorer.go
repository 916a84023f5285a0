// Package scoring turns indicator tables into a 0-100 composite score and a recommendation.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

// Weights of each component. They sum to 100.
const (
	weightTrend      = 30
	weightMomentum   = 20
	weightMACD       = 20
	weightVolume     = 15
	weightVolatility = 15
)

// Recommendation labels.
const (
	StrongBuy  = "Strong Buy"
	Buy        = "Buy"
	Hold       = "Hold"
	Sell       = "Sell"
	StrongSell = "Strong Sell"
)

type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score evaluates the latest row of the table.
func (s *Scorer) Score(table models.IndicatorTable) (int, error) {
	latest, previous, ok := table.Latest()
	if !ok {
		return 0, fmt.Errorf("%w: no indicator rows for %s", models.ErrComputation, table.Symbol)
	}

	total := trendScore(latest) +
		momentumScore(latest.RSI) +
		macdScore(latest, previous) +
		volumeScore(latest, previous) +
		volatilityScore(latest.Volatility)

	if math.IsNaN(total) {
		return 0, fmt.Errorf("%w: score is NaN for %s", models.ErrComputation, table.Symbol)
	}
	return int(math.Round(math.Max(0, math.Min(100, total)))), nil
}

func (s *Scorer) Recommend(score int) string {
	switch {
	case score >= 80:
		return StrongBuy
	case score >= 60:
		return Buy
	case score >= 40:
		return Hold
	case score >= 20:
		return Sell
	}
	return StrongSell
}

func trendScore(r models.IndicatorRow) float64 {
	score := 0.0
	if r.MA5 > r.MA20 && r.MA20 > r.MA60 && r.MA60 > 0 {
		score += 20
	} else if r.MA5 > r.MA20 {
		score += 10
	}
	if r.MA20 > 0 && r.Close > r.MA20 {
		score += 10
	}
	return math.Min(score, weightTrend)
}

// momentumScore favours a healthy RSI band and penalises overbought readings.
func momentumScore(rsi float64) float64 {
	switch {
	case rsi == 0:
		return weightMomentum / 2
	case rsi >= 40 && rsi <= 60:
		return weightMomentum
	case rsi > 60 && rsi <= 70:
		return 15
	case rsi >= 30 && rsi < 40:
		return 12
	case rsi < 30:
		return 8
	}
	return 5
}

func macdScore(latest, previous models.IndicatorRow) float64 {
	score := 0.0
	if latest.MACD > latest.Signal {
		score += 12
	}
	if latest.Histogram > 0 && latest.Histogram >= previous.Histogram {
		score += 8
	}
	return math.Min(score, weightMACD)
}

func volumeScore(latest, previous models.IndicatorRow) float64 {
	switch {
	case latest.VolumeRatio == 0:
		return 7
	case latest.VolumeRatio > 1.5 && latest.Close >= previous.Close:
		return weightVolume
	case latest.VolumeRatio > 1.5:
		return 3
	case latest.VolumeRatio < 0.5:
		return 4
	}
	return 10
}

func volatilityScore(vol float64) float64 {
	switch {
	case vol == 0:
		return 7
	case vol < 0.2:
		return weightVolatility
	case vol < 0.4:
		return 10
	case vol < 0.6:
		return 5
	}
	return 0
}

// Ranked is one scored symbol.
type Ranked struct {
	Symbol         string
	Score          int
	Recommendation string
}

// Rank scores every table with s and returns them by descending score, ties by symbol.
// Tables that cannot be scored are returned in failed.
func Rank(s service.Scorer, tables map[string]models.IndicatorTable) (ranked []Ranked, failed map[string]error) {
	ranked = make([]Ranked, 0, len(tables))
	for symbol, table := range tables {
		score, err := safeScore(s, table)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[symbol] = err
			continue
		}
		ranked = append(ranked, Ranked{Symbol: symbol, Score: score, Recommendation: s.Recommend(score)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked, failed
}

func safeScore(s service.Scorer, table models.IndicatorTable) (score int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: scorer panic: %v", models.ErrComputation, r)
		}
	}()
	return s.Score(table)
}

var _ service.Scorer = (*Scorer)(nil)
