package memorystore

import (
	"errors"
	"fmt"

	"fxstream/pkg/oanda"
)

var (
	ErrNoInstruments = errors.New("no instruments configured")
	ErrNoTimeframes  = errors.New("no timeframes configured")
)

// TimeframeSpec describes one configured candle width.
type TimeframeSpec struct {
	Granularity oanda.Granularity
	Label       string
}

// Registry holds every instrument and (instrument, timeframe) pair of one
// engine. It is built once and is not safe for concurrent mutation: the
// aggregation path owns it.
type Registry struct {
	instruments []*Instrument
	timeframes  []*Timeframe

	bySymbol     map[string]*Instrument
	byInstrument map[string][]*Timeframe
	byKey        map[TimeframeKey]*Timeframe
}

// NewRegistry builds the cross product of instruments and timeframes, keeping
// configuration order. Symbols may be canonical or native.
func NewRegistry(exchange string, symbols []string, specs []TimeframeSpec) (*Registry, error) {
	if len(symbols) == 0 {
		return nil, ErrNoInstruments
	}
	if len(specs) == 0 {
		return nil, ErrNoTimeframes
	}

	r := &Registry{
		bySymbol:     make(map[string]*Instrument, len(symbols)),
		byInstrument: make(map[string][]*Timeframe, len(symbols)),
		byKey:        make(map[TimeframeKey]*Timeframe, len(symbols)*len(specs)),
	}

	for _, spec := range specs {
		if !spec.Granularity.IsValid() {
			return nil, fmt.Errorf("unsupported granularity: %d minutes", spec.Granularity)
		}
	}

	for _, s := range symbols {
		symbol := oanda.CanonicalSymbol(s)
		if _, dup := r.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("duplicate instrument: %s", symbol)
		}

		inst := &Instrument{
			Exchange:     exchange,
			Symbol:       symbol,
			NativeSymbol: oanda.NativeSymbol(symbol),
		}
		r.instruments = append(r.instruments, inst)
		r.bySymbol[symbol] = inst

		for _, spec := range specs {
			label := spec.Label
			if label == "" {
				label = spec.Granularity.DefaultLabel()
			}
			key := TimeframeKey{Symbol: symbol, Label: label}
			if _, dup := r.byKey[key]; dup {
				return nil, fmt.Errorf("duplicate timeframe label %q for %s", label, symbol)
			}

			tf := &Timeframe{
				Symbol:      symbol,
				Granularity: spec.Granularity,
				Label:       label,
				instrument:  inst,
			}
			r.timeframes = append(r.timeframes, tf)
			r.byInstrument[symbol] = append(r.byInstrument[symbol], tf)
			r.byKey[key] = tf
		}
	}

	return r, nil
}

// Instrument looks up an instrument by canonical or native symbol.
func (r *Registry) Instrument(symbol string) (*Instrument, bool) {
	inst, ok := r.bySymbol[oanda.CanonicalSymbol(symbol)]
	return inst, ok
}

// TimeframesOf returns the timeframes of an instrument in configuration order.
func (r *Registry) TimeframesOf(symbol string) []*Timeframe {
	return r.byInstrument[oanda.CanonicalSymbol(symbol)]
}

// Timeframe looks up a single (symbol, label) pair.
func (r *Registry) Timeframe(symbol, label string) (*Timeframe, bool) {
	tf, ok := r.byKey[TimeframeKey{Symbol: oanda.CanonicalSymbol(symbol), Label: label}]
	return tf, ok
}

// Instruments enumerates all instruments.
func (r *Registry) Instruments() []*Instrument {
	out := make([]*Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// Timeframes enumerates all timeframes.
func (r *Registry) Timeframes() []*Timeframe {
	out := make([]*Timeframe, len(r.timeframes))
	copy(out, r.timeframes)
	return out
}

// Symbols returns the canonical symbols in configuration order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.instruments))
	for i, inst := range r.instruments {
		out[i] = inst.Symbol
	}
	return out
}

// CountOpen returns how many timeframes currently hold a candle.
func (r *Registry) CountOpen() int {
	total := 0
	for _, tf := range r.timeframes {
		if tf.Current != nil {
			total++
		}
	}
	return total
}
