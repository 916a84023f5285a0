package models

// FetchResult is the outcome of one fetch attempt for one symbol: either a table or an error.
// Build it with FetchOK or FetchFailed.
type FetchResult struct {
	Symbol string
	Table  CanonicalTable
	Err    error
}

func FetchOK(symbol string, table CanonicalTable) FetchResult {
	return FetchResult{Symbol: symbol, Table: table}
}

func FetchFailed(symbol string, err error) FetchResult {
	return FetchResult{Symbol: symbol, Err: err}
}

func (r FetchResult) OK() bool { return r.Err == nil }

// MarketBatch maps symbols to tables for successful fetches only.
// A missing symbol means no data; an empty table means the provider returned nothing.
type MarketBatch map[string]CanonicalTable

// FetchFailure records why a symbol is absent from a MarketBatch.
type FetchFailure struct {
	Symbol string
	Err    error
}
