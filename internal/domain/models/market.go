package models

import (
	"fmt"
	"strings"
)

// MarketType identifies a venue with its own provider and raw schema.
type MarketType string

const (
	MarketA   MarketType = "A"   // domestic A-share equities
	MarketHK  MarketType = "HK"  // Hong Kong equities
	MarketUS  MarketType = "US"  // US equities
	MarketETF MarketType = "ETF" // exchange-traded funds
	MarketLOF MarketType = "LOF" // listed open-end funds
)

// Markets lists every supported market type.
var Markets = []MarketType{MarketA, MarketHK, MarketUS, MarketETF, MarketLOF}

// ParseMarket accepts market names case-insensitively.
func ParseMarket(s string) (MarketType, error) {
	m := MarketType(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMarket, s)
	}
	return m, nil
}

func (m MarketType) Valid() bool {
	switch m {
	case MarketA, MarketHK, MarketUS, MarketETF, MarketLOF:
		return true
	}
	return false
}

// NativeRange reports whether the market's provider filters by date range itself.
// HK and US histories come back whole and are filtered after retrieval.
func (m MarketType) NativeRange() bool {
	return m != MarketHK && m != MarketUS
}

func (m MarketType) String() string { return string(m) }
