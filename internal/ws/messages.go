package ws

// Inbound frame, parsed leniently first, then validated per type.
type clientMessage struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

type subscribePayload struct {
	Assets []string `validate:"required,min=1,max=50,dive,required"`
}

type unsubscribePayload struct {
	Assets []string `validate:"omitempty,dive,required"`
}

// Outbound frames.
type subscribedFrame struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

type unsubscribedFrame struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type priceUpdateFrame struct {
	Type string          `json:"type"`
	Data priceUpdateData `json:"data"`
}

type priceUpdateData struct {
	ID        int64   `json:"id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Volume24h float64 `json:"volume24h"`
	Timestamp int64   `json:"timestamp"`
}

type marketUpdateFrame struct {
	Type string           `json:"type"`
	Data marketUpdateData `json:"data"`
}

type marketUpdateData struct {
	TotalMarketCap float64 `json:"totalMarketCap"`
	TotalVolume24h float64 `json:"totalVolume24h"`
	BTCDominance   float64 `json:"btcDominance"`
	Timestamp      int64   `json:"timestamp"`
}

const (
	frameSubscribed   = "subscribed"
	frameUnsubscribed = "unsubscribed"
	frameError        = "error"
	framePriceUpdate  = "price_update"
	frameMarketUpdate = "market_update"

	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
)
