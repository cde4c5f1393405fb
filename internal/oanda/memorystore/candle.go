package memorystore

import (
	"math"
	"time"

	"fxstream/pkg/oanda"
)

// Candlestick is an OHLCV summary of the bids seen in [Start, End).
type Candlestick struct {
	Symbol      string            `json:"symbol"`
	Granularity oanda.Granularity `json:"minutes"`
	Label       string            `json:"label"`
	TimeframeID uint              `json:"timeframe_id"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"` // exclusive
	Open        float64           `json:"open"`
	High        float64           `json:"high"`
	Low         float64           `json:"low"`
	Close       float64           `json:"close"`
	Volume      float64           `json:"volume"`
}

// NewVirginCandle opens an empty candle for the bucket starting at start.
// High and Low hold sentinels so the first price replaces both.
func NewVirginCandle(tf *Timeframe, start time.Time) *Candlestick {
	return &Candlestick{
		Symbol:      tf.Symbol,
		Granularity: tf.Granularity,
		Label:       tf.Label,
		TimeframeID: tf.ID,
		Start:       start,
		End:         oanda.BucketEnd(start, tf.Granularity),
		High:        math.Inf(-1),
		Low:         math.Inf(1),
	}
}

// NewSeededCandle opens a candle whose OHLC all start at price.
func NewSeededCandle(tf *Timeframe, start time.Time, price, volume float64) *Candlestick {
	c := NewVirginCandle(tf, start)
	c.Open, c.High, c.Low, c.Close = price, price, price, price
	c.Volume = volume
	return c
}

// IsVirgin reports whether no price has been applied yet.
func (c *Candlestick) IsVirgin() bool {
	return c.Open == 0
}

// Contains reports whether ts falls before the bucket end.
// Ticks earlier than Start are folded into the bucket as well.
func (c *Candlestick) Contains(ts time.Time) bool {
	return ts.Before(c.End)
}

// Apply merges one bid into the candle.
func (c *Candlestick) Apply(price, volume float64) {
	if c.IsVirgin() {
		c.Open = price
	}
	c.Close = price
	c.High = math.Max(c.High, price)
	c.Low = math.Min(c.Low, price)
	c.Volume += volume
}
