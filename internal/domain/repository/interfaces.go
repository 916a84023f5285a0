package repository

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
)

// Provider retrieves raw daily history for one symbol. start and end are YYYYMMDD.
// Implementations may ignore the range when the market has no native range support.
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, symbol string, market models.MarketType, start, end string) (models.RawTable, error)
}

// ProviderSet dispatches market types to providers.
type ProviderSet map[models.MarketType]Provider

func (s ProviderSet) For(market models.MarketType) (Provider, error) {
	p, ok := s[market]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: no provider for %q", models.ErrUnsupportedMarket, market)
	}
	return p, nil
}

// FragmentPublisher forwards stream fragments to an out-of-band sink.
type FragmentPublisher interface {
	PublishFragment(ctx context.Context, requestID string, f models.Fragment) error
	Close() error
}

// BarArchive mirrors canonical bars for later lookup.
type BarArchive interface {
	StoreBars(ctx context.Context, table models.CanonicalTable) error
	QueryBars(ctx context.Context, symbol string, market models.MarketType, from, to time.Time, limit int) (models.CanonicalTable, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordFetch(market, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	FetchStarted(market string)
	FetchFinished(market string)
	RecordScore(market string, score int)
	RecordFragment(kind string)
}
