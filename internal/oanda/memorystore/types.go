package memorystore

import (
	"time"

	"fxstream/pkg/oanda"
)

// Instrument is one configured trading pair.
type Instrument struct {
	ID           uint   `json:"id"`            // assigned by the store at startup, 0 until synced
	Exchange     string `json:"exchange"`      // e.g., "oanda"
	Symbol       string `json:"symbol"`        // canonical symbol (e.g., "EUR/USD")
	NativeSymbol string `json:"native_symbol"` // venue symbol (e.g., "EUR_USD")
	LastQuote    Quote  `json:"last_quote"`
}

// Quote is the latest top of book seen for an instrument. Ask only lives here;
// candles are built from bids.
type Quote struct {
	Time time.Time `json:"time"`
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
}

// Timeframe is an (instrument, granularity) pair and its in-progress candle.
type Timeframe struct {
	ID          uint              `json:"id"` // assigned by the store at startup
	Symbol      string            `json:"symbol"`
	Granularity oanda.Granularity `json:"minutes"`
	Label       string            `json:"label"` // e.g., "5m"
	Current     *Candlestick      `json:"current,omitempty"`

	instrument *Instrument
}

// Instrument returns the owning instrument.
func (tf *Timeframe) Instrument() *Instrument {
	return tf.instrument
}

// TimeframeKey identifies a Timeframe in the registry.
type TimeframeKey struct {
	Symbol string
	Label  string
}

// InstrumentNaturalKey identifies an instrument in the store.
type InstrumentNaturalKey struct {
	Exchange     string
	Symbol       string
	NativeSymbol string
}

// TimeframeNaturalKey identifies a timeframe in the store.
type TimeframeNaturalKey struct {
	InstrumentID uint
	Minutes      int
	Label        string
}
