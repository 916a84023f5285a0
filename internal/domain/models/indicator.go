package models

// IndicatorRow is a canonical bar extended with derived technical series values.
// Windows without enough history report zero.
type IndicatorRow struct {
	DailyBar
	MA5         float64 `json:"ma5"`
	MA20        float64 `json:"ma20"`
	MA60        float64 `json:"ma60"`
	EMA12       float64 `json:"ema12"`
	EMA26       float64 `json:"ema26"`
	MACD        float64 `json:"macd"`
	Signal      float64 `json:"signal"`
	Histogram   float64 `json:"histogram"`
	RSI         float64 `json:"rsi"`
	VolumeMA    float64 `json:"volume_ma"`
	VolumeRatio float64 `json:"volume_ratio"`
	ATR         float64 `json:"atr"`
	Volatility  float64 `json:"volatility"`
}

// IndicatorTable mirrors a CanonicalTable row for row.
type IndicatorTable struct {
	Symbol string         `json:"symbol,omitempty"`
	Market MarketType     `json:"market,omitempty"`
	Rows   []IndicatorRow `json:"rows"`
}

func (t IndicatorTable) Len() int { return len(t.Rows) }

// Latest returns the last row and the one before it. With a single row both are the same.
func (t IndicatorTable) Latest() (latest, previous IndicatorRow, ok bool) {
	n := len(t.Rows)
	if n == 0 {
		return IndicatorRow{}, IndicatorRow{}, false
	}
	latest = t.Rows[n-1]
	previous = latest
	if n > 1 {
		previous = t.Rows[n-2]
	}
	return latest, previous, true
}

// Tail returns at most n trailing rows.
func (t IndicatorTable) Tail(n int) []IndicatorRow {
	if n <= 0 || n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[len(t.Rows)-n:]
}

// WithIdentity returns a copy tagged with symbol and market.
func (t IndicatorTable) WithIdentity(symbol string, market MarketType) IndicatorTable {
	return IndicatorTable{Symbol: symbol, Market: market, Rows: t.Rows}
}
