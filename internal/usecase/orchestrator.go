package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/services/narrative"
	"StockPulse/internal/services/scoring"
	applogger "StockPulse/pkg/logger"
	pkgmetrics "StockPulse/pkg/metrics"
)

const archiveTimeout = 10 * time.Second

// Orchestrator drives single-symbol analysis and batch scans, emitting fragments in order.
type Orchestrator struct {
	fetcher   SymbolFetcher
	scheduler *Scheduler
	assembler *Assembler
	calc      service.IndicatorCalculator
	scorer    service.Scorer
	narrator  service.Narrator
	archive   domrepo.BarArchive
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	topK      int
}

type OrchestratorOption func(*Orchestrator)

// WithArchive mirrors every fetched table into a; failures are logged only.
func WithArchive(a domrepo.BarArchive) OrchestratorOption {
	return func(o *Orchestrator) { o.archive = a }
}

// WithTopK caps how many matched symbols get a narrative in a scan.
func WithTopK(k int) OrchestratorOption {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

func WithMetrics(m domrepo.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func NewOrchestrator(
	fetcher SymbolFetcher,
	scheduler *Scheduler,
	assembler *Assembler,
	calc service.IndicatorCalculator,
	scorer service.Scorer,
	narrator service.Narrator,
	logger *applogger.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if narrator == nil {
		narrator = narrative.None{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	o := &Orchestrator{
		fetcher:   fetcher,
		scheduler: scheduler,
		assembler: assembler,
		calc:      calc,
		scorer:    scorer,
		narrator:  narrator,
		metrics:   pkgmetrics.Nop{},
		logger:    logger,
		topK:      5,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// emitter sends fragments until the consumer goes away.
type emitter struct {
	ctx     context.Context
	out     chan<- models.Fragment
	metrics domrepo.Metrics
}

func (e emitter) emit(f models.Fragment) bool {
	select {
	case e.out <- f:
		e.metrics.RecordFragment(string(f.Kind))
		return true
	case <-e.ctx.Done():
		return false
	}
}

// run starts body on its own goroutine. A panic in body becomes a final request-wide error fragment.
func (o *Orchestrator) run(ctx context.Context, op string, body func(emitter)) <-chan models.Fragment {
	out := make(chan models.Fragment)
	e := emitter{ctx: ctx, out: out, metrics: o.metrics}
	go func() {
		start := time.Now()
		defer close(out)
		defer func() {
			o.metrics.RecordLatency(op, time.Since(start).Seconds())
			if r := recover(); r != nil {
				o.logger.Error("stream aborted", applogger.String("op", op), applogger.Any("panic", r))
				o.metrics.RecordError(op + "_panic")
				e.emit(models.ErrorFragment("", "", fmt.Errorf("%s failed: %v", op, r)))
			}
		}()
		body(e)
	}()
	return out
}

// Analyze streams one symbol: a summary, then narrative chunks. A fetch failure or
// empty history yields exactly one error fragment and nothing else. The channel is
// closed at the end; cancel ctx to stop early.
func (o *Orchestrator) Analyze(ctx context.Context, req models.AnalyzeRequest) <-chan models.Fragment {
	return o.run(ctx, "analyze", func(e emitter) {
		market := req.MarketType()
		log := o.logger.With(applogger.Symbol(req.Symbol), applogger.Market(market.String()))
		fail := func(err error) {
			log.Warn("analysis failed", applogger.String("kind", models.ErrorKind(err)), applogger.Error(err))
			o.metrics.RecordError(models.ErrorKind(err))
			e.emit(models.ErrorFragment(req.Symbol, market, err))
		}
		if !market.Valid() {
			fail(fmt.Errorf("%w: %q", models.ErrUnsupportedMarket, req.Market))
			return
		}

		res := o.fetcher.Fetch(ctx, req.Symbol, market, req.StartDate, req.EndDate)
		if !res.OK() {
			fail(res.Err)
			return
		}
		if res.Table.Empty() {
			fail(fmt.Errorf("%w: no history for %s in %s market", models.ErrEmptyData, req.Symbol, market))
			return
		}
		o.archiveTable(ctx, res.Table)

		summary, ind, err := o.summarize(req.Symbol, market, res.Table)
		if err != nil {
			fail(err)
			return
		}
		o.metrics.RecordScore(market.String(), summary.Score)
		if !e.emit(models.SummaryFragment(summary)) {
			return
		}

		narrator := narrative.ForOverride(req.NarrativeOverride, o.narrator, o.logger)
		o.streamNarrative(e, narrator, req.Symbol, market, ind, req.Stream)
	})
}

// summarize computes indicators, score and the summary for one table.
func (o *Orchestrator) summarize(symbol string, market models.MarketType, table models.CanonicalTable) (models.AnalysisSummary, models.IndicatorTable, error) {
	ind, err := o.compute(table)
	if err != nil {
		return models.AnalysisSummary{}, models.IndicatorTable{}, err
	}
	ranked, failed := scoring.Rank(o.scorer, map[string]models.IndicatorTable{symbol: ind})
	if err := failed[symbol]; err != nil {
		return models.AnalysisSummary{}, models.IndicatorTable{}, err
	}
	summary, err := o.assembler.Assemble(symbol, market, table, ind, ranked[0].Score, ranked[0].Recommendation)
	return summary, ind, err
}

// compute runs the indicator collaborator, which may panic on malformed input.
func (o *Orchestrator) compute(table models.CanonicalTable) (ind models.IndicatorTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: indicator panic: %v", models.ErrComputation, r)
		}
	}()
	ind, err = o.calc.Compute(table)
	if err != nil && !errors.Is(err, models.ErrComputation) {
		err = fmt.Errorf("%w: %w", models.ErrComputation, err)
	}
	return ind.WithIdentity(table.Symbol, table.Market), err
}

// streamNarrative emits chunks for one symbol. When stream is false the chunks arrive as one.
// A fault ends the narrative with an error fragment; what was emitted stands.
func (o *Orchestrator) streamNarrative(e emitter, n service.Narrator, symbol string, market models.MarketType, ind models.IndicatorTable, stream bool) bool {
	seq := n.Stream(e.ctx, service.NarrativeRequest{Symbol: symbol, Market: market, Table: ind, Stream: stream})
	if !stream {
		seq = narrative.Collapse(seq)
	}
	var fault error
	func() {
		defer func() {
			if r := recover(); r != nil {
				fault = fmt.Errorf("%w: narrator panic: %v", models.ErrNarrative, r)
			}
		}()
		for chunk, err := range seq {
			if err != nil {
				fault = err
				return
			}
			if chunk == "" {
				continue
			}
			if !e.emit(models.NarrativeFragment(symbol, chunk)) {
				fault = e.ctx.Err()
				return
			}
		}
	}()
	if fault == nil {
		return true
	}
	if e.ctx.Err() != nil {
		return false
	}
	if !errors.Is(fault, models.ErrNarrative) {
		fault = fmt.Errorf("%w: %w", models.ErrNarrative, fault)
	}
	o.logger.Warn("narrative failed", applogger.Symbol(symbol), applogger.String("narrator", n.Name()), applogger.Error(fault))
	o.metrics.RecordError(models.ErrorKind(fault))
	return e.emit(models.ErrorFragment(symbol, market, fault))
}

type scored struct {
	summary models.AnalysisSummary
	ind     models.IndicatorTable
}

// Scan streams a batch: batch init, per-symbol errors, one summary per scored symbol,
// narratives for the top matches when requested, then a completion fragment.
// Summaries at or above MinScore are "waiting", the rest "completed".
func (o *Orchestrator) Scan(ctx context.Context, req models.ScanRequest) <-chan models.Fragment {
	return o.run(ctx, "scan", func(e emitter) {
		market := req.MarketType()
		symbols := req.UniqueSymbols()
		log := o.logger.With(applogger.Market(market.String()), applogger.String("request_id", req.RequestID))

		if !e.emit(models.BatchInitFragment(models.BatchInit{Symbols: symbols, Market: market, MinScore: req.MinScore})) {
			return
		}
		if !market.Valid() {
			e.emit(models.ErrorFragment("", "", fmt.Errorf("%w: %q", models.ErrUnsupportedMarket, req.Market)))
			return
		}

		batch, failures := o.scheduler.FetchMany(ctx, symbols, market, req.StartDate, req.EndDate)
		for _, f := range failures {
			o.metrics.RecordError(models.ErrorKind(f.Err))
			if !e.emit(models.ErrorFragment(f.Symbol, market, f.Err)) {
				return
			}
		}

		tables := make(map[string]models.IndicatorTable, len(batch))
		for _, symbol := range symbols {
			table, ok := batch[symbol]
			if !ok {
				continue
			}
			var err error
			if table.Empty() {
				err = fmt.Errorf("%w: no history for %s", models.ErrEmptyData, symbol)
			} else {
				o.archiveTable(ctx, table)
				tables[symbol], err = o.compute(table)
			}
			if err != nil {
				delete(tables, symbol)
				log.Warn("symbol skipped", applogger.Symbol(symbol), applogger.Error(err))
				o.metrics.RecordError(models.ErrorKind(err))
				if !e.emit(models.ErrorFragment(symbol, market, err)) {
					return
				}
			}
		}

		ranked, failed := scoring.Rank(o.scorer, tables)
		byRank := make(map[string]scoring.Ranked, len(ranked))
		for _, r := range ranked {
			byRank[r.Symbol] = r
		}

		results := make(map[string]scored, len(ranked))
		for _, symbol := range symbols {
			if _, ok := tables[symbol]; !ok {
				continue
			}
			err := failed[symbol]
			var summary models.AnalysisSummary
			if err == nil {
				r := byRank[symbol]
				summary, err = o.assembler.Assemble(symbol, market, batch[symbol], tables[symbol], r.Score, r.Recommendation)
			}
			if err != nil {
				o.metrics.RecordError(models.ErrorKind(err))
				if !e.emit(models.ErrorFragment(symbol, market, err)) {
					return
				}
				continue
			}

			summary.Status = models.StatusCompleted
			if summary.Score >= req.MinScore {
				summary.Status = models.StatusWaiting
			}
			o.metrics.RecordScore(market.String(), summary.Score)
			results[symbol] = scored{summary: summary, ind: tables[symbol]}
			if !e.emit(models.SummaryFragment(summary)) {
				return
			}
		}

		matched := make([]scored, 0, len(results))
		for _, r := range ranked {
			if s, ok := results[r.Symbol]; ok && s.summary.Score >= req.MinScore {
				matched = append(matched, s)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].summary.Score > matched[j].summary.Score })

		if req.Stream {
			narrator := narrative.ForOverride(req.NarrativeOverride, o.narrator, o.logger)
			for _, s := range matched[:min(o.topK, len(matched))] {
				if !e.emit(models.StatusFragment(s.summary.Symbol, models.StatusAnalyzing)) {
					return
				}
				if !o.streamNarrative(e, narrator, s.summary.Symbol, market, s.ind, true) {
					return
				}
			}
		}

		log.Info("scan completed",
			applogger.Int("requested", len(symbols)),
			applogger.Int("scanned", len(results)),
			applogger.Int("matched", len(matched)),
		)
		e.emit(models.CompletionFragment(len(results), len(matched)))
	})
}

// archiveTable writes through to the bar archive in the background.
func (o *Orchestrator) archiveTable(ctx context.Context, table models.CanonicalTable) {
	if o.archive == nil {
		return
	}
	go func() {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := o.archive.StoreBars(actx, table); err != nil {
			o.logger.Warn("archive write failed", applogger.Symbol(table.Symbol), applogger.Error(err))
			o.metrics.RecordError("archive")
		}
	}()
}
