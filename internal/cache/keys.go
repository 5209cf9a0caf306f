package cache

import (
	"fmt"
	"time"
)

// Cache keys for the market-wide feeds.
const (
	KeyGlobalMetrics = "global-metrics"
	KeyFearGreed     = "fear-greed"
)

// TTL policy per feed. Fixed, not configurable per call; the refresh
// scheduler derives its polling cadence from these values.
const (
	ListingsTTL      = 30 * time.Second
	AssetTTL         = 30 * time.Second
	QuotesTTL        = 15 * time.Second
	GlobalMetricsTTL = 60 * time.Second
	FearGreedTTL     = 300 * time.Second

	// DefaultSweepInterval bounds how long expired entries linger in memory.
	DefaultSweepInterval = 60 * time.Second
)

// ListingsKey builds the cache key for a page of listings.
func ListingsKey(start, limit int) string {
	return fmt.Sprintf("listings:%d:%d", start, limit)
}

// AssetKey builds the cache key for a single asset by provider id.
func AssetKey(id int64) string {
	return fmt.Sprintf("asset:%d", id)
}

// QuotesKey builds the cache key for a single quote by provider id.
func QuotesKey(id int64) string {
	return fmt.Sprintf("quotes:%d", id)
}
