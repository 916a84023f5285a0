package models

import "time"

// DailyBar is one canonical daily record. Every market fills every numeric field;
// fields the source does not provide are zero. ChangePct is nil when the source
// does not report a change percentage, so callers can fall back to computing it.
type DailyBar struct {
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount"`
	Amplitude float64   `json:"amplitude"`
	ChangePct *float64  `json:"change_pct,omitempty"`
	ChangeAbs float64   `json:"change"`
	Turnover  float64   `json:"turnover"`
}

// CanonicalTable is an ascending, date-unique sequence of daily bars.
// Tables are never mutated after construction; transformations return new tables.
type CanonicalTable struct {
	Symbol string     `json:"symbol,omitempty"`
	Market MarketType `json:"market,omitempty"`
	Bars   []DailyBar `json:"bars"`
}

func (t CanonicalTable) Len() int    { return len(t.Bars) }
func (t CanonicalTable) Empty() bool { return len(t.Bars) == 0 }

// Last returns the most recent bar.
func (t CanonicalTable) Last() (DailyBar, bool) {
	if len(t.Bars) == 0 {
		return DailyBar{}, false
	}
	return t.Bars[len(t.Bars)-1], true
}

// Between returns a new table holding bars with from <= date <= to, compared by calendar day.
func (t CanonicalTable) Between(from, to time.Time) CanonicalTable {
	lo, hi := dayOf(from), dayOf(to)
	out := CanonicalTable{Symbol: t.Symbol, Market: t.Market, Bars: make([]DailyBar, 0, len(t.Bars))}
	for _, b := range t.Bars {
		d := dayOf(b.Date)
		if d.Before(lo) || d.After(hi) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}

// WithIdentity returns a copy tagged with symbol and market.
func (t CanonicalTable) WithIdentity(symbol string, market MarketType) CanonicalTable {
	return CanonicalTable{Symbol: symbol, Market: market, Bars: t.Bars}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RawTable is a provider response before normalization: either positional rows
// (column names informational only) or named columns, with cells as text.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (r RawTable) Empty() bool { return len(r.Rows) == 0 }
