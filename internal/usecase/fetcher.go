package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/normalize"
	applogger "StockPulse/pkg/logger"
	pkgmetrics "StockPulse/pkg/metrics"
	xutil "StockPulse/pkg/util"
)

// SymbolFetcher fetches one symbol and never returns a raised fault; failures are in the result.
type SymbolFetcher interface {
	Fetch(ctx context.Context, symbol string, market models.MarketType, startDate, endDate string) models.FetchResult
}

// Fetcher retrieves raw history from the market's provider and normalizes it.
type Fetcher struct {
	providers domrepo.ProviderSet
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	lookback  int
	now       func() time.Time
}

func NewFetcher(providers domrepo.ProviderSet, metrics domrepo.Metrics, logger *applogger.Logger, lookbackDays int) *Fetcher {
	if lookbackDays <= 0 {
		lookbackDays = 365
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Fetcher{
		providers: providers,
		metrics:   metrics,
		logger:    logger,
		lookback:  lookbackDays,
		now:       time.Now,
	}
}

// Range resolves optional start and end dates. Empty end means now; empty start means the
// end minus the lookback. Both come back as provider-ready YYYYMMDD strings and as days.
func (f *Fetcher) Range(startDate, endDate string) (start, end string, from, to time.Time, err error) {
	to, err = parseOr(endDate, f.now())
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	from, err = parseOr(startDate, to.AddDate(0, 0, -f.lookback))
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	if from.After(to) {
		return "", "", time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is after end %s", models.ErrInvalidDate, xutil.FormatDay(from), xutil.FormatDay(to))
	}
	return xutil.FormatCompact(from), xutil.FormatCompact(to), from, to, nil
}

// parseOr accepts every layout util.ParseTime knows, then retries with dashes removed.
func parseOr(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return xutil.StartOfDay(def), nil
	}
	t, ok := xutil.ParseTime(s)
	if !ok {
		t, ok = xutil.ParseTime(xutil.CompactDate(s))
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", models.ErrInvalidDate, s)
	}
	return xutil.StartOfDay(t), nil
}

// Fetch implements SymbolFetcher. An empty provider response is a successful, empty table.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, market models.MarketType, startDate, endDate string) (res models.FetchResult) {
	began := time.Now()
	log := f.logger.With(applogger.Symbol(symbol), applogger.Market(market.String()))
	defer func() {
		if r := recover(); r != nil {
			res = models.FetchFailed(symbol, fmt.Errorf("%w: provider panic: %v", models.ErrProviderFault, r))
		}
		f.observe(market, res, time.Since(began), log)
	}()

	start, end, from, to, err := f.Range(startDate, endDate)
	if err != nil {
		return models.FetchFailed(symbol, err)
	}
	provider, err := f.providers.For(market)
	if err != nil {
		return models.FetchFailed(symbol, err)
	}

	raw, err := provider.FetchDaily(ctx, symbol, market, start, end)
	if err != nil {
		if !errors.Is(err, models.ErrUnsupportedMarket) {
			err = fmt.Errorf("%w: %s %s: %w", models.ErrProviderFault, provider.Name(), symbol, err)
		}
		return models.FetchFailed(symbol, err)
	}

	table, err := normalize.Normalize(market, raw)
	if err != nil {
		return models.FetchFailed(symbol, fmt.Errorf("%s: %w", symbol, err))
	}
	if !market.NativeRange() {
		table = table.Between(from, to)
	}
	return models.FetchOK(symbol, table.WithIdentity(symbol, market))
}

func (f *Fetcher) observe(market models.MarketType, res models.FetchResult, took time.Duration, log *applogger.Logger) {
	result := "ok"
	switch {
	case !res.OK():
		result = models.ErrorKind(res.Err)
		log.Warn("fetch failed", applogger.String("kind", result), applogger.Error(res.Err))
	case res.Table.Empty():
		result = "empty"
		log.Debug("fetch returned no rows")
	default:
		log.Debug("fetched", applogger.Int("rows", res.Table.Len()), applogger.Duration("took", took))
	}
	f.metrics.RecordFetch(market.String(), result)
	f.metrics.RecordLatency("fetch", took.Seconds())
}
