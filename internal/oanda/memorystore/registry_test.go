package memorystore

import (
	"math"
	"testing"
	"time"

	"fxstream/pkg/oanda"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpecs = []TimeframeSpec{
	{Granularity: oanda.Granularity1Min, Label: "1m"},
	{Granularity: oanda.Granularity5Min, Label: "5m"},
	{Granularity: oanda.Granularity1H}, // label defaults to "1h"
}

// go test -v --run TestNewRegistry
func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry("oanda", []string{"EUR/USD", "USD_JPY"}, testSpecs)
	require.NoError(t, err)

	assert.Equal(t, []string{"EUR/USD", "USD/JPY"}, r.Symbols())
	assert.Len(t, r.Instruments(), 2)
	assert.Len(t, r.Timeframes(), 6)

	inst, ok := r.Instrument("USD_JPY")
	require.True(t, ok)
	assert.Equal(t, "USD/JPY", inst.Symbol)
	assert.Equal(t, "USD_JPY", inst.NativeSymbol)
	assert.Equal(t, "oanda", inst.Exchange)

	tfs := r.TimeframesOf("EUR/USD")
	require.Len(t, tfs, 3)
	assert.Equal(t, []string{"1m", "5m", "1h"}, []string{tfs[0].Label, tfs[1].Label, tfs[2].Label})
	for _, tf := range tfs {
		assert.Same(t, r.bySymbol["EUR/USD"], tf.Instrument())
		assert.Nil(t, tf.Current)
	}

	tf, ok := r.Timeframe("EUR_USD", "1h")
	require.True(t, ok)
	assert.Equal(t, oanda.Granularity1H, tf.Granularity)

	_, ok = r.Timeframe("EUR/USD", "4h")
	assert.False(t, ok)
	_, ok = r.Instrument("GBP/USD")
	assert.False(t, ok)
	assert.Empty(t, r.TimeframesOf("GBP/USD"))
}

// go test -v --run TestNewRegistryErrors
func TestNewRegistryErrors(t *testing.T) {
	_, err := NewRegistry("oanda", nil, testSpecs)
	assert.ErrorIs(t, err, ErrNoInstruments)

	_, err = NewRegistry("oanda", []string{"EUR/USD"}, nil)
	assert.ErrorIs(t, err, ErrNoTimeframes)

	_, err = NewRegistry("oanda", []string{"EUR/USD"}, []TimeframeSpec{{Granularity: 3, Label: "3m"}})
	assert.Error(t, err)

	_, err = NewRegistry("oanda", []string{"EUR/USD", "EUR_USD"}, testSpecs)
	assert.Error(t, err)

	_, err = NewRegistry("oanda", []string{"EUR/USD"}, []TimeframeSpec{
		{Granularity: oanda.Granularity5Min, Label: "x"},
		{Granularity: oanda.Granularity15Min, Label: "x"},
	})
	assert.Error(t, err)
}

// Registries are independent: two engines never share candles.
//
// go test -v --run TestRegistriesAreIsolated
func TestRegistriesAreIsolated(t *testing.T) {
	a, err := NewRegistry("oanda", []string{"EUR/USD"}, testSpecs)
	require.NoError(t, err)
	b, err := NewRegistry("oanda", []string{"EUR/USD"}, testSpecs)
	require.NoError(t, err)

	tfA, _ := a.Timeframe("EUR/USD", "1m")
	tfA.Current = NewVirginCandle(tfA, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC))

	tfB, _ := b.Timeframe("EUR/USD", "1m")
	assert.Nil(t, tfB.Current)
	assert.Equal(t, 1, a.CountOpen())
	assert.Equal(t, 0, b.CountOpen())
}

// go test -v --run TestCandleApply
func TestCandleApply(t *testing.T) {
	tf := &Timeframe{Symbol: "EUR/USD", Granularity: oanda.Granularity5Min, Label: "5m", ID: 7}
	start := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)

	c := NewVirginCandle(tf, start)
	assert.True(t, c.IsVirgin())
	assert.Equal(t, uint(7), c.TimeframeID)
	assert.Equal(t, start.Add(5*time.Minute), c.End)
	assert.True(t, math.IsInf(c.High, -1))
	assert.True(t, math.IsInf(c.Low, 1))
	assert.Zero(t, c.Close)

	c.Apply(1.2, 10)
	c.Apply(1.3, 5)
	c.Apply(1.1, 0)

	assert.False(t, c.IsVirgin())
	assert.Equal(t, 1.2, c.Open)
	assert.Equal(t, 1.3, c.High)
	assert.Equal(t, 1.1, c.Low)
	assert.Equal(t, 1.1, c.Close)
	assert.Equal(t, 15.0, c.Volume)

	assert.True(t, c.Contains(start.Add(-time.Minute)))
	assert.True(t, c.Contains(c.End.Add(-time.Nanosecond)))
	assert.False(t, c.Contains(c.End))
}
