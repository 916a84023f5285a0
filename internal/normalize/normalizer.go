// Package normalize maps provider-specific raw tables onto the canonical daily table.
// It is pure: no I/O, no logging, no shared state.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"StockPulse/internal/domain/models"
	xutil "StockPulse/pkg/util"
)

// Canonical column names used by both layouts.
const (
	ColDate      = "date"
	ColCode      = "code"
	ColOpen      = "open"
	ColClose     = "close"
	ColHigh      = "high"
	ColLow       = "low"
	ColVolume    = "volume"
	ColAmount    = "amount"
	ColAmplitude = "amplitude"
	ColChangePct = "change_pct"
	ColChange    = "change"
	ColTurnover  = "turnover"
)

type layout int

const (
	// positional rows must match the schema arity exactly; names are not consulted
	positional layout = iota
	// named columns are matched case-insensitively; absent ones become zero
	named
)

type schema struct {
	layout       layout
	columns      []string
	deriveAmount bool
}

var fundColumns = []string{
	ColDate, ColOpen, ColClose, ColHigh, ColLow, ColVolume,
	ColAmount, ColAmplitude, ColChangePct, ColChange, ColTurnover,
}

var namedColumns = []string{ColDate, ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColAmount}

var schemas = map[models.MarketType]schema{
	models.MarketA: {
		layout: positional,
		columns: []string{
			ColDate, ColCode, ColOpen, ColClose, ColHigh, ColLow, ColVolume,
			ColAmount, ColAmplitude, ColChangePct, ColChange, ColTurnover,
		},
	},
	models.MarketETF: {layout: positional, columns: fundColumns},
	models.MarketLOF: {layout: positional, columns: fundColumns},
	models.MarketHK:  {layout: named, columns: namedColumns, deriveAmount: true},
	models.MarketUS:  {layout: named, columns: namedColumns, deriveAmount: true},
}

// ExpectedColumns returns the raw column layout a provider must produce for market.
func ExpectedColumns(market models.MarketType) []string {
	s, ok := schemas[market]
	if !ok {
		return nil
	}
	return append([]string(nil), s.columns...)
}

// Normalize converts raw into a canonical table sorted ascending by date with unique dates.
// A positional table whose arity differs from the market schema yields an empty table and
// an error wrapping models.ErrSchemaMismatch. An empty raw table is not an error.
func Normalize(market models.MarketType, raw models.RawTable) (models.CanonicalTable, error) {
	empty := models.CanonicalTable{Market: market, Bars: []models.DailyBar{}}

	s, ok := schemas[market]
	if !ok {
		return empty, fmt.Errorf("%w: %q", models.ErrUnsupportedMarket, market)
	}
	if raw.Empty() {
		return empty, nil
	}

	var (
		bars []models.DailyBar
		err  error
	)
	switch s.layout {
	case positional:
		bars, err = fromPositional(s, raw)
	case named:
		bars, err = fromNamed(s, raw)
	}
	if err != nil {
		return empty, err
	}
	return models.CanonicalTable{Market: market, Bars: sortUnique(bars)}, nil
}

func fromPositional(s schema, raw models.RawTable) ([]models.DailyBar, error) {
	want := len(s.columns)
	if len(raw.Columns) > 0 && len(raw.Columns) != want {
		return nil, fmt.Errorf("%w: got %d columns, want %d", models.ErrSchemaMismatch, len(raw.Columns), want)
	}

	idx := make(map[string]int, want)
	for i, c := range s.columns {
		idx[c] = i
	}

	bars := make([]models.DailyBar, 0, len(raw.Rows))
	for n, row := range raw.Rows {
		if len(row) != want {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", models.ErrSchemaMismatch, n, len(row), want)
		}
		cell := func(name string) string { return row[idx[name]] }
		b, ok := buildBar(cell, true)
		if !ok {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func fromNamed(s schema, raw models.RawTable) ([]models.DailyBar, error) {
	idx := make(map[string]int, len(raw.Columns))
	for i, c := range raw.Columns {
		idx[strings.ToLower(strings.TrimSpace(c))] = i
	}
	if _, ok := idx[ColDate]; !ok {
		return nil, fmt.Errorf("%w: no %q column in %v", models.ErrSchemaMismatch, ColDate, raw.Columns)
	}
	_, hasAmount := idx[ColAmount]

	bars := make([]models.DailyBar, 0, len(raw.Rows))
	for n, row := range raw.Rows {
		if len(row) != len(raw.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", models.ErrSchemaMismatch, n, len(row), len(raw.Columns))
		}
		cell := func(name string) string {
			if i, ok := idx[name]; ok {
				return row[i]
			}
			return ""
		}
		b, ok := buildBar(cell, false)
		if !ok {
			continue
		}
		if !hasAmount && s.deriveAmount {
			b.Amount = b.Volume * b.Close
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// buildBar reads one record; rows without a parseable date are skipped.
func buildBar(cell func(string) string, withChangePct bool) (models.DailyBar, bool) {
	date, ok := xutil.ParseTime(cell(ColDate))
	if !ok {
		return models.DailyBar{}, false
	}
	num := func(name string) float64 { return xutil.ParseFloatDefault(cell(name), 0) }

	b := models.DailyBar{
		Date:      xutil.StartOfDay(date),
		Open:      num(ColOpen),
		Close:     num(ColClose),
		High:      num(ColHigh),
		Low:       num(ColLow),
		Volume:    num(ColVolume),
		Amount:    num(ColAmount),
		Amplitude: num(ColAmplitude),
		ChangeAbs: num(ColChange),
		Turnover:  num(ColTurnover),
	}
	if withChangePct {
		if raw := strings.TrimSpace(cell(ColChangePct)); raw != "" && raw != "-" {
			v := xutil.ParseFloatDefault(raw, 0)
			b.ChangePct = &v
		}
	}
	return b, true
}

// sortUnique orders bars by date and keeps the last record seen for each date.
func sortUnique(bars []models.DailyBar) []models.DailyBar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// Denormalize renders table in the raw layout of market, the inverse of Normalize.
// Provider fakes and fixtures use it to produce realistic raw input.
func Denormalize(market models.MarketType, table models.CanonicalTable) models.RawTable {
	s, ok := schemas[market]
	if !ok {
		return models.RawTable{}
	}
	raw := models.RawTable{Columns: append([]string(nil), s.columns...), Rows: make([][]string, 0, len(table.Bars))}
	for _, b := range table.Bars {
		row := make([]string, len(s.columns))
		for i, c := range s.columns {
			row[i] = cellOf(c, b, table.Symbol)
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw
}

func cellOf(col string, b models.DailyBar, symbol string) string {
	switch col {
	case ColDate:
		return xutil.FormatDay(b.Date)
	case ColCode:
		return symbol
	case ColOpen:
		return xutil.FormatFloat(b.Open)
	case ColClose:
		return xutil.FormatFloat(b.Close)
	case ColHigh:
		return xutil.FormatFloat(b.High)
	case ColLow:
		return xutil.FormatFloat(b.Low)
	case ColVolume:
		return xutil.FormatFloat(b.Volume)
	case ColAmount:
		return xutil.FormatFloat(b.Amount)
	case ColAmplitude:
		return xutil.FormatFloat(b.Amplitude)
	case ColChangePct:
		if b.ChangePct == nil {
			return ""
		}
		return xutil.FormatFloat(*b.ChangePct)
	case ColChange:
		return xutil.FormatFloat(b.ChangeAbs)
	case ColTurnover:
		return xutil.FormatFloat(b.Turnover)
	}
	return ""
}
