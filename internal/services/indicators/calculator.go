// Package indicators derives technical series (moving averages, MACD, RSI, volume, ATR,
// realized volatility) from canonical daily bars.
package indicators

import (
	"fmt"
	"math"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

const (
	TradingDaysPerYear = 252
)

// Periods configures the indicator windows.
type Periods struct {
	MAShort, MAMedium, MALong int
	EMAFast, EMASlow, Signal  int
	RSI                       int
	VolumeMA                  int
	ATR                       int
	Volatility                int
}

func DefaultPeriods() Periods {
	return Periods{
		MAShort: 5, MAMedium: 20, MALong: 60,
		EMAFast: 12, EMASlow: 26, Signal: 9,
		RSI:        14,
		VolumeMA:   20,
		ATR:        14,
		Volatility: 20,
	}
}

// Calculator implements service.IndicatorCalculator.
type Calculator struct {
	p Periods
}

func NewCalculator() *Calculator {
	return &Calculator{p: DefaultPeriods()}
}

func NewCalculatorWithPeriods(p Periods) *Calculator {
	return &Calculator{p: p}
}

// Compute returns one indicator row per bar. Series whose window is not yet full report zero.
func (c *Calculator) Compute(table models.CanonicalTable) (models.IndicatorTable, error) {
	n := len(table.Bars)
	if n == 0 {
		return models.IndicatorTable{}, fmt.Errorf("%w: no bars for %s", models.ErrComputation, table.Symbol)
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range table.Bars {
		if !finite(b.Close, b.Open, b.High, b.Low, b.Volume) {
			return models.IndicatorTable{}, fmt.Errorf("%w: non-finite value on %s", models.ErrComputation, b.Date.Format("2006-01-02"))
		}
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	ma5 := SMA(closes, c.p.MAShort)
	ma20 := SMA(closes, c.p.MAMedium)
	ma60 := SMA(closes, c.p.MALong)
	ema12 := EMA(closes, c.p.EMAFast)
	ema26 := EMA(closes, c.p.EMASlow)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMA(macd, c.p.Signal)
	rsi := RSI(closes, c.p.RSI)
	volMA := SMA(volumes, c.p.VolumeMA)
	atr := ATR(table.Bars, c.p.ATR)
	vol := RollingVolatility(LogReturns(closes), c.p.Volatility, TradingDaysPerYear)

	out := models.IndicatorTable{Symbol: table.Symbol, Market: table.Market, Rows: make([]models.IndicatorRow, n)}
	for i, b := range table.Bars {
		row := models.IndicatorRow{
			DailyBar:  b,
			MA5:       ma5[i],
			MA20:      ma20[i],
			MA60:      ma60[i],
			EMA12:     ema12[i],
			EMA26:     ema26[i],
			MACD:      macd[i],
			Signal:    signal[i],
			Histogram: macd[i] - signal[i],
			RSI:       rsi[i],
			VolumeMA:  volMA[i],
			ATR:       atr[i],
		}
		if volMA[i] > 0 {
			row.VolumeRatio = b.Volume / volMA[i]
		}
		// returns start at the second bar
		if i > 0 {
			row.Volatility = vol[i-1]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// SMA is the simple moving average; entries before the window fills are zero.
func SMA(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the exponential moving average seeded with the first value.
func EMA(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 || period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = (xs[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI uses Wilder smoothing. The first value lands on index period.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		gain += g
		loss += l
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsiValue(gain, loss)

	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR is the Wilder-smoothed average true range; the first value lands on index period-1.
func ATR(bars []models.DailyBar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr[i] = math.Max(tr[i], math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// LogReturns computes r_t = ln(C_t / C_{t-1}); non-positive prices yield 0.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the annualized sample deviation of the trailing window of returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// RollingVolatility evaluates RealizedVolatility at every return index.
func RollingVolatility(logReturns []float64, window int, barsPerYear float64) []float64 {
	out := make([]float64, len(logReturns))
	for i := range logReturns {
		out[i] = RealizedVolatility(logReturns[:i+1], window, barsPerYear)
	}
	return out
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

var _ service.IndicatorCalculator = (*Calculator)(nil)
