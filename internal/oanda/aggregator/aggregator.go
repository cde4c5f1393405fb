package aggregator

import (
	"time"

	"fxstream/internal/oanda/memorystore"
	"fxstream/pkg/oanda"
)

// Update is the outcome of one tick on one timeframe. Updated is the live
// candle after the tick; Completed is set only when the tick rolled the
// previous bucket over.
type Update struct {
	Updated   memorystore.Candlestick
	Completed *memorystore.Candlestick
}

// Engine folds ticks into the current candle of every timeframe of a
// registry. Calls must be serialized by the caller.
type Engine struct {
	registry *memorystore.Registry
	loc      *time.Location
}

// New creates an engine over reg. Bucket alignment happens in loc (UTC if nil).
func New(reg *memorystore.Registry, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{registry: reg, loc: loc}
}

func (e *Engine) Registry() *memorystore.Registry {
	return e.registry
}

// ApplyTick updates every timeframe of the tick's instrument and returns one
// Update per timeframe. A tick for an unknown symbol changes nothing and
// returns ok=false.
func (e *Engine) ApplyTick(tick oanda.Tick) (updates []Update, ok bool) {
	inst, ok := e.registry.Instrument(tick.Symbol)
	if !ok {
		return nil, false
	}

	ts := tick.Time.In(e.loc)
	inst.LastQuote = memorystore.Quote{Time: ts, Bid: tick.Bid, Ask: tick.Ask}

	tfs := e.registry.TimeframesOf(inst.Symbol)
	updates = make([]Update, 0, len(tfs))
	for _, tf := range tfs {
		updates = append(updates, applyToTimeframe(tf, ts, tick.Bid, tick.BidVolumeOrZero()))
	}
	return updates, true
}

func applyToTimeframe(tf *memorystore.Timeframe, ts time.Time, bid, volume float64) Update {
	if tf.Current == nil {
		tf.Current = memorystore.NewVirginCandle(tf, oanda.AlignedBucketStart(ts, tf.Granularity))
	}

	if tf.Current.Contains(ts) {
		tf.Current.Apply(bid, volume)
		return Update{Updated: *tf.Current}
	}

	// Roll over. The next bucket starts where the last one ended, even when
	// ts is several buckets later, so the sequence has no gaps.
	completed := *tf.Current
	tf.Current = memorystore.NewSeededCandle(tf, completed.End, bid, volume)

	return Update{Updated: *tf.Current, Completed: &completed}
}
