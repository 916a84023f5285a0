package models

import (
	"strings"
	"time"
)

// Requests for analysis HTTP, websocket and Kafka endpoints. Defined in domain for reuse.

type AnalyzeRequest struct {
	Symbol    string `json:"stock_code" validate:"required,stockcode"`
	Market    string `json:"market_type" default:"A" validate:"oneofci=A HK US ETF LOF"`
	StartDate string `json:"start_date" validate:"omitempty,day"`
	EndDate   string `json:"end_date" validate:"omitempty,day"`
	Stream    bool   `json:"stream"`
	NarrativeOverride
}

func (r AnalyzeRequest) MarketType() MarketType { return MarketType(strings.ToUpper(r.Market)) }

// ScanRequest is input only; the orchestrator never mutates it.
type ScanRequest struct {
	RequestID string   `json:"request_id,omitempty"`
	Symbols   []string `json:"stock_codes" validate:"required,min=1,max=500,dive,stockcode"`
	Market    string   `json:"market_type" default:"A" validate:"oneofci=A HK US ETF LOF"`
	MinScore  int      `json:"min_score" validate:"gte=0,lte=100"`
	Stream    bool     `json:"stream"`
	StartDate string   `json:"start_date" validate:"omitempty,day"`
	EndDate   string   `json:"end_date" validate:"omitempty,day"`
	NarrativeOverride
}

func (r ScanRequest) MarketType() MarketType { return MarketType(strings.ToUpper(r.Market)) }

// UniqueSymbols returns the symbol set in first-seen order.
func (r ScanRequest) UniqueSymbols() []string {
	seen := make(map[string]struct{}, len(r.Symbols))
	out := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NarrativeOverride lets a caller bring its own OpenAI-compatible endpoint for one request.
type NarrativeOverride struct {
	APIURL     string `json:"api_url,omitempty" validate:"omitempty,url"`
	APIKey     string `json:"api_key,omitempty"`
	APIModel   string `json:"api_model,omitempty"`
	APITimeout int    `json:"api_timeout,omitempty" validate:"omitempty,gte=1,lte=300"`
}

// Set reports whether the caller supplied an endpoint and key.
func (o NarrativeOverride) Set() bool { return o.APIURL != "" && o.APIKey != "" }

type TestAPIRequest struct {
	APIURL     string `json:"api_url" validate:"required,url"`
	APIKey     string `json:"api_key" validate:"required"`
	APIModel   string `json:"api_model" default:"deepseek/deepseek-chat"`
	APITimeout int    `json:"api_timeout" default:"10" validate:"gte=1,lte=300"`
}

func (r TestAPIRequest) Timeout() time.Duration { return time.Duration(r.APITimeout) * time.Second }

type BarsRequest struct {
	Code   string `param:"code" validate:"required,stockcode"`
	Market string `query:"market" default:"A" validate:"oneofci=A HK US ETF LOF"`
	From   string `query:"from" validate:"omitempty,day"`
	To     string `query:"to" validate:"omitempty,day"`
	Limit  int    `query:"limit" default:"500" validate:"gte=1,lte=5000"`
}

func (r BarsRequest) MarketType() MarketType { return MarketType(strings.ToUpper(r.Market)) }
