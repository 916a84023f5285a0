package usecase

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	applogger "StockPulse/pkg/logger"
	pkgmetrics "StockPulse/pkg/metrics"
)

// Scheduler fetches many symbols in parallel with at most maxConcurrency provider calls in flight.
type Scheduler struct {
	fetcher        SymbolFetcher
	maxConcurrency int
	metrics        domrepo.Metrics
	logger         *applogger.Logger
}

func NewScheduler(fetcher SymbolFetcher, maxConcurrency int, metrics domrepo.Metrics, logger *applogger.Logger) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Scheduler{fetcher: fetcher, maxConcurrency: maxConcurrency, metrics: metrics, logger: logger}
}

// FetchMany fetches every unique symbol once. The batch holds successful fetches only;
// failures come back in request order. Once ctx is done no further fetch is admitted,
// while admitted fetches run to completion.
func (s *Scheduler) FetchMany(ctx context.Context, symbols []string, market models.MarketType, startDate, endDate string) (models.MarketBatch, []models.FetchFailure) {
	symbols = uniqueInOrder(symbols)
	results := make([]models.FetchResult, len(symbols))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(symbols); j++ {
				results[j] = models.FetchFailed(symbols[j], fmt.Errorf("%w: not admitted: %w", models.ErrProviderFault, err))
			}
			break
		}
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			defer sem.Release(1)
			s.metrics.FetchStarted(market.String())
			defer s.metrics.FetchFinished(market.String())
			results[i] = s.fetchOne(ctx, symbol, market, startDate, endDate)
		}(i, symbol)
	}
	wg.Wait()

	batch := make(models.MarketBatch, len(symbols))
	var failures []models.FetchFailure
	for _, r := range results {
		if !r.OK() {
			failures = append(failures, models.FetchFailure{Symbol: r.Symbol, Err: r.Err})
			continue
		}
		batch[r.Symbol] = r.Table
	}
	s.logger.Info("batch fetched",
		applogger.Market(market.String()),
		applogger.Int("requested", len(symbols)),
		applogger.Int("ok", len(batch)),
		applogger.Int("failed", len(failures)),
	)
	return batch, failures
}

// fetchOne isolates a sibling from a fetcher that panics instead of reporting.
func (s *Scheduler) fetchOne(ctx context.Context, symbol string, market models.MarketType, startDate, endDate string) (res models.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetch panicked", applogger.Symbol(symbol), applogger.Any("panic", r))
			res = models.FetchFailed(symbol, fmt.Errorf("%w: %v", models.ErrProviderFault, r))
		}
	}()
	res = s.fetcher.Fetch(ctx, symbol, market, startDate, endDate)
	res.Symbol = symbol
	return res
}

func uniqueInOrder(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
