package domain

// Asset is one tradable asset as reported by the upstream market data
// provider, flattened to the fields the API and the WebSocket feed expose.
type Asset struct {
	ID                int64     `json:"id"`
	Rank              int       `json:"rank"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	Slug              string    `json:"slug"`
	Image             string    `json:"image,omitempty"`
	Price             float64   `json:"price"`
	Change1h          float64   `json:"change1h"`
	Change24h         float64   `json:"change24h"`
	Change7d          float64   `json:"change7d"`
	MarketCap         float64   `json:"marketCap"`
	Volume24h         float64   `json:"volume24h"`
	CirculatingSupply float64   `json:"circulatingSupply"`
	MaxSupply         *float64  `json:"maxSupply,omitempty"`
	Sparkline         []float64 `json:"sparkline,omitempty"`
}

// GlobalMetrics is a snapshot of market-wide aggregates.
type GlobalMetrics struct {
	TotalMarketCap         float64 `json:"totalMarketCap"`
	TotalVolume24h         float64 `json:"totalVolume24h"`
	BTCDominance           float64 `json:"btcDominance"`
	ETHDominance           float64 `json:"ethDominance"`
	ActiveCryptocurrencies int     `json:"activeCryptocurrencies"`
	MarketCapChange24h     float64 `json:"marketCapChange24h"`
	LastUpdated            string  `json:"lastUpdated"`
}

// FearGreedReading is one observation of the fear & greed sentiment index.
type FearGreedReading struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	Timestamp      string `json:"timestamp"`
}

// ClassifyFearGreed maps an index value to its canonical label.
func ClassifyFearGreed(value int) string {
	switch {
	case value <= 24:
		return "Extreme Fear"
	case value <= 44:
		return "Fear"
	case value <= 55:
		return "Neutral"
	case value <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}
