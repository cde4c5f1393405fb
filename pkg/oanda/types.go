package oanda

import "encoding/json"

// Message types carried by the v3 pricing stream.
const (
	TypeHeartbeat = "HEARTBEAT"
	TypePrice     = "PRICE"
)

// StreamMessage is one newline-delimited record of the pricing stream.
// HEARTBEAT records only carry Type and Time.
type StreamMessage struct {
	Type        string        `json:"type"`        // "PRICE" or "HEARTBEAT"
	Time        string        `json:"time"`        // RFC3339 with nanoseconds, UTC
	Instrument  string        `json:"instrument"`  // e.g., "EUR_USD"
	Bids        []PriceBucket `json:"bids"`        // best bid first
	Asks        []PriceBucket `json:"asks"`        // best ask first
	CloseoutBid string        `json:"closeoutBid"` // price used for candles
	CloseoutAsk string        `json:"closeoutAsk"`
	Tradeable   *bool         `json:"tradeable,omitempty"`
}

// PriceBucket is a price level with the liquidity available at it.
type PriceBucket struct {
	Price     string      `json:"price"`
	Liquidity json.Number `json:"liquidity"`
}
