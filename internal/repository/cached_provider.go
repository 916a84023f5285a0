package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/cache"
	applogger "StockPulse/pkg/logger"
)

// CachedProvider memoizes raw provider responses per market, symbol and range.
// Cache faults never fail a fetch; they are logged and the provider is called.
type CachedProvider struct {
	inner  domrepo.Provider
	cache  cache.BytesCache
	ttl    time.Duration
	logger *applogger.Logger
}

func NewCachedProvider(inner domrepo.Provider, c cache.BytesCache, ttl time.Duration, logger *applogger.Logger) *CachedProvider {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &CachedProvider{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Name() string { return p.inner.Name() }

func (p *CachedProvider) FetchDaily(ctx context.Context, symbol string, market models.MarketType, start, end string) (models.RawTable, error) {
	key := rawKey(market, symbol, start, end)

	if b, ok, err := p.cache.GetBytes(ctx, key); err != nil {
		p.logger.Warn("raw cache read failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var raw models.RawTable
		if err := json.Unmarshal(b, &raw); err == nil {
			return raw, nil
		}
		p.logger.Warn("raw cache entry corrupt", applogger.String("key", key))
	}

	raw, err := p.inner.FetchDaily(ctx, symbol, market, start, end)
	if err != nil || raw.Empty() {
		return raw, err
	}

	if b, err := json.Marshal(raw); err == nil {
		if err := p.cache.SetBytes(ctx, key, b, p.ttl); err != nil {
			p.logger.Warn("raw cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return raw, nil
}

func rawKey(market models.MarketType, symbol, start, end string) string {
	return fmt.Sprintf("raw:%s:%s:%s:%s", market, symbol, start, end)
}
