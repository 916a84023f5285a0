package models

import "encoding/json"

// Status tags summary and progress fragments.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusWaiting   Status = "waiting"
	StatusAnalyzing Status = "analyzing"
	StatusError     Status = "error"
)

type FragmentKind string

const (
	KindBatchInit  FragmentKind = "batch_init"
	KindSummary    FragmentKind = "summary"
	KindStatus     FragmentKind = "status"
	KindNarrative  FragmentKind = "narrative"
	KindError      FragmentKind = "error"
	KindCompletion FragmentKind = "completion"
)

// Fragment is one unit of a streamed analysis or scan. Only the fields relevant to Kind are set.
type Fragment struct {
	Kind       FragmentKind
	Symbol     string
	Market     MarketType
	Batch      *BatchInit
	Summary    *AnalysisSummary
	Status     Status
	Chunk      string
	Error      string
	Completion *ScanCompletion
}

type BatchInit struct {
	Symbols  []string   `json:"stock_codes"`
	Market   MarketType `json:"market_type"`
	MinScore int        `json:"min_score"`
}

type ScanCompletion struct {
	TotalScanned int `json:"total_scanned"`
	TotalMatched int `json:"total_matched"`
}

func BatchInitFragment(b BatchInit) Fragment {
	return Fragment{Kind: KindBatchInit, Market: b.Market, Batch: &b}
}

func SummaryFragment(s AnalysisSummary) Fragment {
	return Fragment{Kind: KindSummary, Symbol: s.Symbol, Market: s.Market, Summary: &s, Status: s.Status}
}

func StatusFragment(symbol string, status Status) Fragment {
	return Fragment{Kind: KindStatus, Symbol: symbol, Status: status}
}

func NarrativeFragment(symbol, chunk string) Fragment {
	return Fragment{Kind: KindNarrative, Symbol: symbol, Chunk: chunk}
}

// ErrorFragment reports a failure; symbol and market may be empty for request-wide faults.
func ErrorFragment(symbol string, market MarketType, err error) Fragment {
	return Fragment{Kind: KindError, Symbol: symbol, Market: market, Status: StatusError, Error: err.Error()}
}

func CompletionFragment(scanned, matched int) Fragment {
	return Fragment{Kind: KindCompletion, Completion: &ScanCompletion{TotalScanned: scanned, TotalMatched: matched}}
}

// MarshalJSON renders the wire shape for each kind.
func (f Fragment) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case KindBatchInit:
		return json.Marshal(struct {
			StreamType string `json:"stream_type"`
			*BatchInit
		}{StreamType: "batch", BatchInit: f.Batch})
	case KindSummary:
		return json.Marshal(f.Summary)
	case KindStatus:
		return json.Marshal(struct {
			Symbol string `json:"stock_code"`
			Status Status `json:"status"`
		}{f.Symbol, f.Status})
	case KindNarrative:
		return json.Marshal(struct {
			Symbol string `json:"stock_code"`
			Chunk  string `json:"ai_analysis_chunk"`
		}{f.Symbol, f.Chunk})
	case KindError:
		return json.Marshal(struct {
			Symbol string     `json:"stock_code,omitempty"`
			Market MarketType `json:"market_type,omitempty"`
			Error  string     `json:"error"`
			Status Status     `json:"status"`
		}{f.Symbol, f.Market, f.Error, StatusError})
	case KindCompletion:
		return json.Marshal(struct {
			ScanCompleted bool `json:"scan_completed"`
			*ScanCompletion
		}{ScanCompleted: true, ScanCompletion: f.Completion})
	}
	return json.Marshal(map[string]string{"kind": string(f.Kind)})
}
