package server

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/marketpulse/marketpulse/internal/cache"
	"github.com/marketpulse/marketpulse/internal/domain"
	"github.com/marketpulse/marketpulse/internal/errors"
)

// Source is the full upstream provider surface the HTTP layer can fall
// back to on a cache miss.
type Source interface {
	GetListings(ctx context.Context, start, limit int, sort, sortDir string) ([]domain.Asset, error)
	GetQuotesByIDs(ctx context.Context, ids []int64) ([]domain.Asset, error)
	GetGlobalMetrics(ctx context.Context) (domain.GlobalMetrics, error)
	GetFearAndGreed(ctx context.Context) (domain.FearGreedReading, error)
}

// MarketService serves cache-first reads. Concurrent misses for the same
// key collapse into a single provider call via singleflight, so a cold cache
// under load costs one upstream request per key, not one per client.
type MarketService struct {
	cache  *cache.Cache
	source Source
	group  singleflight.Group
}

// NewMarketService creates the read-through service.
func NewMarketService(c *cache.Cache, source Source) *MarketService {
	return &MarketService{cache: c, source: source}
}

// Listings returns one page of listings, from cache when fresh.
func (m *MarketService) Listings(ctx context.Context, page, limit int) ([]domain.Asset, error) {
	start := (page-1)*limit + 1
	key := cache.ListingsKey(start, limit)

	if v, ok := m.cache.Get(key); ok {
		return v.([]domain.Asset), nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		assets, err := m.source.GetListings(ctx, start, limit, "market_cap", "desc")
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, assets, cache.ListingsTTL)
		return assets, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Asset), nil
}

// Asset returns a single asset by provider id.
func (m *MarketService) Asset(ctx context.Context, id int64) (domain.Asset, error) {
	key := cache.AssetKey(id)

	if v, ok := m.cache.Get(key); ok {
		return v.(domain.Asset), nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		assets, err := m.source.GetQuotesByIDs(ctx, []int64{id})
		if err != nil {
			return domain.Asset{}, err
		}
		if len(assets) == 0 {
			return domain.Asset{}, errors.NotFoundError(fmt.Sprintf("asset %d not found", id))
		}
		m.cache.Set(key, assets[0], cache.AssetTTL)
		return assets[0], nil
	})
	if err != nil {
		return domain.Asset{}, err
	}
	return v.(domain.Asset), nil
}

// Quotes returns current quotes for the given ids. Cached quotes are served
// directly; the rest are fetched in one provider call.
func (m *MarketService) Quotes(ctx context.Context, ids []int64) ([]domain.Asset, error) {
	byID := make(map[int64]domain.Asset, len(ids))
	missing := make([]int64, 0, len(ids))

	for _, id := range ids {
		if v, ok := m.cache.Get(cache.QuotesKey(id)); ok {
			byID[id] = v.(domain.Asset)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		key := "quotes-fetch:" + joinIDs(missing)
		v, err, _ := m.group.Do(key, func() (any, error) {
			fetched, err := m.source.GetQuotesByIDs(ctx, missing)
			if err != nil {
				return nil, err
			}
			for _, asset := range fetched {
				m.cache.Set(cache.QuotesKey(asset.ID), asset, cache.QuotesTTL)
			}
			return fetched, nil
		})
		if err != nil {
			return nil, err
		}
		for _, asset := range v.([]domain.Asset) {
			byID[asset.ID] = asset
		}
	}

	// Requested order, unknown ids skipped.
	quotes := make([]domain.Asset, 0, len(ids))
	for _, id := range ids {
		if asset, ok := byID[id]; ok {
			quotes = append(quotes, asset)
		}
	}
	return quotes, nil
}

// GlobalMetrics returns the market-wide aggregates.
func (m *MarketService) GlobalMetrics(ctx context.Context) (domain.GlobalMetrics, error) {
	if v, ok := m.cache.Get(cache.KeyGlobalMetrics); ok {
		return v.(domain.GlobalMetrics), nil
	}

	v, err, _ := m.group.Do(cache.KeyGlobalMetrics, func() (any, error) {
		global, err := m.source.GetGlobalMetrics(ctx)
		if err != nil {
			return domain.GlobalMetrics{}, err
		}
		m.cache.Set(cache.KeyGlobalMetrics, global, cache.GlobalMetricsTTL)
		return global, nil
	})
	if err != nil {
		return domain.GlobalMetrics{}, err
	}
	return v.(domain.GlobalMetrics), nil
}

// FearGreed returns the current sentiment index reading.
func (m *MarketService) FearGreed(ctx context.Context) (domain.FearGreedReading, error) {
	if v, ok := m.cache.Get(cache.KeyFearGreed); ok {
		return v.(domain.FearGreedReading), nil
	}

	v, err, _ := m.group.Do(cache.KeyFearGreed, func() (any, error) {
		reading, err := m.source.GetFearAndGreed(ctx)
		if err != nil {
			return domain.FearGreedReading{}, err
		}
		m.cache.Set(cache.KeyFearGreed, reading, cache.FearGreedTTL)
		return reading, nil
	})
	if err != nil {
		return domain.FearGreedReading{}, err
	}
	return v.(domain.FearGreedReading), nil
}

func joinIDs(ids []int64) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatInt(id, 10)
	}
	return s
}
