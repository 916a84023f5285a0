package usecase

import (
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	applogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

// Volume classification bounds relative to the volume moving average.
const (
	volumeHighRatio = 1.5
	volumeLowRatio  = 0.5
)

// Assembler builds the numeric summary for one symbol from its indicator table and score.
type Assembler struct {
	logger *applogger.Logger
	now    func() time.Time
}

func NewAssembler(logger *applogger.Logger) *Assembler {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Assembler{logger: logger, now: time.Now}
}

// Assemble requires at least one indicator row. With a single row the previous row is
// the same row, so the price change is zero.
func (a *Assembler) Assemble(symbol string, market models.MarketType, table models.CanonicalTable, ind models.IndicatorTable, score int, recommendation string) (models.AnalysisSummary, error) {
	latest, previous, ok := ind.Latest()
	if !ok {
		return models.AnalysisSummary{}, fmt.Errorf("%w: %s: no indicator rows", models.ErrComputation, symbol)
	}

	analysisDate := xutil.FormatDay(a.now())
	pct := ChangePercent(latest, previous)

	return models.AnalysisSummary{
		Symbol:           symbol,
		Market:           market,
		AnalysisDate:     analysisDate,
		PriceDate:        a.priceDate(symbol, latest, table, analysisDate),
		Score:            score,
		Price:            latest.Close,
		PriceChangeValue: latest.Close - previous.Close,
		PriceChange:      pct,
		ChangePercent:    pct,
		MATrend:          ClassifyTrend(latest.MA5, latest.MA20, latest.MA60),
		RSI:              latest.RSI,
		MACDSignal:       ClassifyMACD(latest.MACD, latest.Signal),
		VolumeStatus:     ClassifyVolume(latest.Volume, latest.VolumeMA),
		Recommendation:   recommendation,
	}, nil
}

// priceDate is the latest row's date, then the canonical table's last date, then analysisDate.
func (a *Assembler) priceDate(symbol string, latest models.IndicatorRow, table models.CanonicalTable, analysisDate string) string {
	if !latest.Date.IsZero() {
		return xutil.FormatDay(latest.Date)
	}
	if last, ok := table.Last(); ok && !last.Date.IsZero() {
		return xutil.FormatDay(last.Date)
	}
	a.logger.Warn("latest row has no date, using analysis date", applogger.Symbol(symbol))
	return analysisDate
}

// ChangePercent prefers the provider's figure, then computes it from the previous close,
// and is nil when neither is available.
func ChangePercent(latest, previous models.IndicatorRow) *float64 {
	if latest.ChangePct != nil {
		v := *latest.ChangePct
		return &v
	}
	if previous.Close != 0 {
		v := (latest.Close - previous.Close) / previous.Close * 100
		return &v
	}
	return nil
}

// ClassifyTrend is UP for short > medium > long, DOWN for the strict reverse, FLAT otherwise.
// A zero average means its window is not filled yet and gives FLAT.
func ClassifyTrend(short, medium, long float64) models.MATrend {
	switch {
	case short <= 0 || medium <= 0 || long <= 0:
		return models.TrendFlat
	case short > medium && medium > long:
		return models.TrendUp
	case short < medium && medium < long:
		return models.TrendDown
	}
	return models.TrendFlat
}

func ClassifyMACD(macd, signal float64) models.MACDSignal {
	switch {
	case macd > signal:
		return models.SignalBuy
	case macd < signal:
		return models.SignalSell
	}
	return models.SignalHold
}

// ClassifyVolume is NORMAL while the moving average is not available.
func ClassifyVolume(volume, volumeMA float64) models.VolumeStatus {
	switch {
	case volumeMA <= 0:
		return models.VolumeNormal
	case volume > volumeMA*volumeHighRatio:
		return models.VolumeHigh
	case volume < volumeMA*volumeLowRatio:
		return models.VolumeLow
	}
	return models.VolumeNormal
}
