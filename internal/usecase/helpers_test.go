package usecase

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// rising builds n daily bars with close 10, 11, 12...
func rising(symbol string, market models.MarketType, n int) models.CanonicalTable {
	bars := make([]models.DailyBar, n)
	for i := range bars {
		c := float64(10 + i)
		bars[i] = models.DailyBar{Date: day0.AddDate(0, 0, i), Open: c, Close: c, High: c + 1, Low: c - 1, Volume: 1000}
	}
	return models.CanonicalTable{Symbol: symbol, Market: market, Bars: bars}
}

type stubFetcher struct {
	mu      sync.Mutex
	results map[string]models.FetchResult
	calls   []string
}

func (f *stubFetcher) Fetch(_ context.Context, symbol string, _ models.MarketType, _, _ string) models.FetchResult {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()
	if r, ok := f.results[symbol]; ok {
		return r
	}
	return models.FetchFailed(symbol, models.ErrProviderFault)
}

// stubCalc mirrors the canonical rows with fixed averages; symbols in fail error out.
type stubCalc struct {
	fail map[string]bool
}

func (c stubCalc) Compute(table models.CanonicalTable) (models.IndicatorTable, error) {
	if c.fail[table.Symbol] {
		return models.IndicatorTable{}, errors.New("bad input")
	}
	out := models.IndicatorTable{Symbol: table.Symbol, Market: table.Market}
	for _, b := range table.Bars {
		out.Rows = append(out.Rows, models.IndicatorRow{DailyBar: b, MA5: 3, MA20: 2, MA60: 1, MACD: 1, Signal: 0.5, RSI: 60, VolumeMA: 1000})
	}
	return out, nil
}

type stubScorer struct {
	scores map[string]int
}

func (s stubScorer) Score(t models.IndicatorTable) (int, error) {
	if v, ok := s.scores[t.Symbol]; ok {
		return v, nil
	}
	return 50, nil
}

func (s stubScorer) Recommend(score int) string {
	if score >= 60 {
		return "Buy"
	}
	return "Hold"
}

type stubNarrator struct {
	chunks []string
	err    error

	mu    sync.Mutex
	calls []string
}

func (n *stubNarrator) Name() string { return "stub" }

func (n *stubNarrator) Stream(_ context.Context, req service.NarrativeRequest) iter.Seq2[string, error] {
	n.mu.Lock()
	n.calls = append(n.calls, req.Symbol)
	n.mu.Unlock()
	return func(yield func(string, error) bool) {
		for _, c := range n.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if n.err != nil {
			yield("", n.err)
		}
	}
}

func newTestOrchestrator(f SymbolFetcher, calc service.IndicatorCalculator, scorer service.Scorer, n service.Narrator, opts ...OrchestratorOption) *Orchestrator {
	a := NewAssembler(nil)
	a.now = func() time.Time { return time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC) }
	return NewOrchestrator(f, NewScheduler(f, 5, nil, nil), a, calc, scorer, n, nil, opts...)
}

func drain(t *testing.T, ch <-chan models.Fragment) []models.Fragment {
	t.Helper()
	var out []models.Fragment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("fragment stream did not finish")
			return out
		}
	}
}

func kinds(frags []models.Fragment) []models.FragmentKind {
	out := make([]models.FragmentKind, len(frags))
	for i, f := range frags {
		out[i] = f.Kind
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	ids  []string
	frag []models.Fragment
	err  error
}

func (p *recordingPublisher) PublishFragment(_ context.Context, requestID string, f models.Fragment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, requestID)
	p.frag = append(p.frag, f)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
