// Package provider implements the upstream market data client
// (CoinMarketCap for prices and global metrics, alternative.me for the
// fear & greed index).
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketpulse/marketpulse/internal/domain"
	"github.com/marketpulse/marketpulse/internal/errors"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

const (
	requestTimeout = 10 * time.Second
	apiKeyHeader   = "X-CMC_PRO_API_KEY"
)

// CoinMarketCap is a REST client for the upstream provider. All calls are
// request/response; failures surface as *errors.Error with TypeExternal so
// the scheduler can apply its stale-over-unavailable policy.
type CoinMarketCap struct {
	httpClient   *http.Client
	baseURL      string
	fearGreedURL string
	apiKey       string
	limiter      *rate.Limiter
}

// NewCoinMarketCap creates a provider client. requestsPerMinute caps the
// upstream call budget across all callers (refresh scheduler and HTTP
// cache-miss reads share one limiter).
func NewCoinMarketCap(apiKey, baseURL, fearGreedURL string, requestsPerMinute int) *CoinMarketCap {
	return &CoinMarketCap{
		httpClient:   &http.Client{Timeout: requestTimeout},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		fearGreedURL: fearGreedURL,
		apiKey:       apiKey,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
	}
}

type cmcListing struct {
	ID      int64               `json:"id"`
	Name    string              `json:"name"`
	Symbol  string              `json:"symbol"`
	Slug    string              `json:"slug"`
	CmcRank int                 `json:"cmc_rank"`
	Quote   map[string]cmcQuote `json:"quote"`
}

type cmcQuote struct {
	Price             *float64 `json:"price"`
	Volume24h         *float64 `json:"volume_24h"`
	PercentChange1h   *float64 `json:"percent_change_1h"`
	PercentChange24h  *float64 `json:"percent_change_24h"`
	PercentChange7d   *float64 `json:"percent_change_7d"`
	MarketCap         *float64 `json:"market_cap"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	MaxSupply         *float64 `json:"max_supply"`
}

type cmcListingsResponse struct {
	Data []cmcListing `json:"data"`
}

type cmcQuotesResponse struct {
	Data map[string]cmcListing `json:"data"`
}

type cmcGlobalResponse struct {
	Data struct {
		BtcDominance           float64 `json:"btc_dominance"`
		EthDominance           float64 `json:"eth_dominance"`
		ActiveCryptocurrencies int     `json:"active_cryptocurrencies"`
		LastUpdated            string  `json:"last_updated"`
		Quote                  map[string]struct {
			TotalMarketCap                           float64 `json:"total_market_cap"`
			TotalVolume24h                           float64 `json:"total_volume_24h"`
			TotalMarketCapYesterdayPercentageChange  float64 `json:"total_market_cap_yesterday_percentage_change"`
		} `json:"quote"`
	} `json:"data"`
}

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// GetListings fetches a page of listings sorted by the given field.
func (c *CoinMarketCap) GetListings(ctx context.Context, start, limit int, sort, sortDir string) ([]domain.Asset, error) {
	url := fmt.Sprintf("%s/cryptocurrency/listings/latest?start=%d&limit=%d&sort=%s&sort_dir=%s&convert=USD",
		c.baseURL, start, limit, sort, sortDir)

	var resp cmcListingsResponse
	if err := c.getJSON(ctx, "listings", url, true, &resp); err != nil {
		return nil, err
	}

	assets := make([]domain.Asset, 0, len(resp.Data))
	for _, listing := range resp.Data {
		assets = append(assets, convertListing(listing))
	}
	return assets, nil
}

// GetQuotesByIDs fetches current quotes for the given provider ids.
// Unknown ids are simply absent from the result.
func (c *CoinMarketCap) GetQuotesByIDs(ctx context.Context, ids []int64) ([]domain.Asset, error) {
	if len(ids) == 0 {
		return []domain.Asset{}, nil
	}

	idParams := make([]string, len(ids))
	for i, id := range ids {
		idParams[i] = strconv.FormatInt(id, 10)
	}
	url := fmt.Sprintf("%s/cryptocurrency/quotes/latest?id=%s&convert=USD",
		c.baseURL, strings.Join(idParams, ","))

	var resp cmcQuotesResponse
	if err := c.getJSON(ctx, "quotes", url, true, &resp); err != nil {
		return nil, err
	}

	// Preserve the requested order; the response is keyed by id.
	assets := make([]domain.Asset, 0, len(resp.Data))
	for _, id := range ids {
		if listing, ok := resp.Data[strconv.FormatInt(id, 10)]; ok {
			assets = append(assets, convertListing(listing))
		}
	}
	return assets, nil
}

// GetGlobalMetrics fetches the market-wide aggregates.
func (c *CoinMarketCap) GetGlobalMetrics(ctx context.Context) (domain.GlobalMetrics, error) {
	url := fmt.Sprintf("%s/global-metrics/quotes/latest", c.baseURL)

	var resp cmcGlobalResponse
	if err := c.getJSON(ctx, "global-metrics", url, true, &resp); err != nil {
		return domain.GlobalMetrics{}, err
	}

	usd := resp.Data.Quote["USD"]
	return domain.GlobalMetrics{
		TotalMarketCap:         usd.TotalMarketCap,
		TotalVolume24h:         usd.TotalVolume24h,
		BTCDominance:           resp.Data.BtcDominance,
		ETHDominance:           resp.Data.EthDominance,
		ActiveCryptocurrencies: resp.Data.ActiveCryptocurrencies,
		MarketCapChange24h:     usd.TotalMarketCapYesterdayPercentageChange,
		LastUpdated:            resp.Data.LastUpdated,
	}, nil
}

// GetFearAndGreed fetches the sentiment index from alternative.me
// (free endpoint, no API key).
func (c *CoinMarketCap) GetFearAndGreed(ctx context.Context) (domain.FearGreedReading, error) {
	url := fmt.Sprintf("%s?limit=1", strings.TrimSuffix(c.fearGreedURL, "/"))

	var resp fngResponse
	if err := c.getJSON(ctx, "fear-greed", url, false, &resp); err != nil {
		return domain.FearGreedReading{}, err
	}
	if len(resp.Data) == 0 {
		return domain.FearGreedReading{}, errors.ExternalError("fear & greed response contained no data", nil)
	}

	item := resp.Data[0]
	value, err := strconv.Atoi(item.Value)
	if err != nil {
		return domain.FearGreedReading{}, errors.ExternalError("fear & greed value is not a number", err)
	}

	classification := item.ValueClassification
	if classification == "" {
		classification = domain.ClassifyFearGreed(value)
	}

	return domain.FearGreedReading{
		Value:          value,
		Classification: classification,
		Timestamp:      item.Timestamp,
	}, nil
}

func (c *CoinMarketCap) getJSON(ctx context.Context, endpoint, url string, withKey bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.ExternalError("provider rate limiter interrupted", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.InternalError("failed to build provider request", err)
	}
	if withKey {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return errors.ExternalError("provider request failed", err).WithContext("endpoint", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return errors.ExternalError("failed to read provider response", err).WithContext("endpoint", endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ProviderRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return errors.ExternalError(fmt.Sprintf("provider returned status %d", resp.StatusCode), nil).
			WithContext("endpoint", endpoint).
			WithContext("status", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "parse_error").Inc()
		return errors.ExternalError("failed to parse provider response", err).WithContext("endpoint", endpoint)
	}

	metrics.ProviderRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func convertListing(listing cmcListing) domain.Asset {
	quote := listing.Quote["USD"]

	asset := domain.Asset{
		ID:                listing.ID,
		Rank:              listing.CmcRank,
		Name:              listing.Name,
		Symbol:            listing.Symbol,
		Slug:              listing.Slug,
		Image:             fmt.Sprintf("https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png", listing.ID),
		Price:             safeFloat(quote.Price),
		Change1h:          safeFloat(quote.PercentChange1h),
		Change24h:         safeFloat(quote.PercentChange24h),
		Change7d:          safeFloat(quote.PercentChange7d),
		MarketCap:         safeFloat(quote.MarketCap),
		Volume24h:         safeFloat(quote.Volume24h),
		CirculatingSupply: safeFloat(quote.CirculatingSupply),
		MaxSupply:         quote.MaxSupply,
	}
	asset.Sparkline = syntheticSparkline(asset.ID, asset.Price, asset.Change24h)
	return asset
}

// safeFloat unwraps an optional value, filtering NaN and Infinity the
// upstream occasionally produces.
func safeFloat(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}
