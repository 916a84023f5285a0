package models

type MATrend string

const (
	TrendUp   MATrend = "UP"
	TrendDown MATrend = "DOWN"
	TrendFlat MATrend = "FLAT"
)

type MACDSignal string

const (
	SignalBuy  MACDSignal = "BUY"
	SignalSell MACDSignal = "SELL"
	SignalHold MACDSignal = "HOLD"
)

type VolumeStatus string

const (
	VolumeHigh   VolumeStatus = "HIGH"
	VolumeLow    VolumeStatus = "LOW"
	VolumeNormal VolumeStatus = "NORMAL"
)

// AnalysisSummary is the numeric result for one symbol in one analysis pass.
// AnalysisDate is the wall-clock date of computation, PriceDate the latest bar date.
// PriceChange and ChangePercent carry the same value; both keys are part of the wire format.
type AnalysisSummary struct {
	Symbol           string       `json:"stock_code"`
	Market           MarketType   `json:"market_type"`
	AnalysisDate     string       `json:"analysis_date"`
	PriceDate        string       `json:"price_date"`
	Score            int          `json:"score"`
	Price            float64      `json:"price"`
	PriceChangeValue float64      `json:"price_change_value"`
	PriceChange      *float64     `json:"price_change"`
	ChangePercent    *float64     `json:"change_percent"`
	MATrend          MATrend      `json:"ma_trend"`
	RSI              float64      `json:"rsi"`
	MACDSignal       MACDSignal   `json:"macd_signal"`
	VolumeStatus     VolumeStatus `json:"volume_status"`
	Recommendation   string       `json:"recommendation"`
	Narrative        string       `json:"ai_analysis"`
	Status           Status       `json:"status,omitempty"`
}
