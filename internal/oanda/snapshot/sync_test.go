package snapshot

import (
	"context"
	"errors"
	"testing"

	"fxstream/internal/oanda/memorystore"
	"fxstream/pkg/oanda"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memResolver struct {
	exchanges   []string
	instruments map[memorystore.InstrumentNaturalKey]uint
	timeframes  map[memorystore.TimeframeNaturalKey]uint
	failOn      string
}

func newMemResolver() *memResolver {
	return &memResolver{
		instruments: map[memorystore.InstrumentNaturalKey]uint{},
		timeframes:  map[memorystore.TimeframeNaturalKey]uint{},
	}
}

func (m *memResolver) EnsureExchange(_ context.Context, name string) error {
	m.exchanges = append(m.exchanges, name)
	return nil
}

func (m *memResolver) ResolveOrCreateInstrumentID(_ context.Context, key memorystore.InstrumentNaturalKey) (uint, error) {
	if key.Symbol == m.failOn {
		return 0, errors.New("boom")
	}
	if id, ok := m.instruments[key]; ok {
		return id, nil
	}
	id := uint(len(m.instruments) + 1)
	m.instruments[key] = id
	return id, nil
}

func (m *memResolver) ResolveOrCreateTimeframeID(_ context.Context, key memorystore.TimeframeNaturalKey) (uint, error) {
	if id, ok := m.timeframes[key]; ok {
		return id, nil
	}
	id := uint(100 + len(m.timeframes))
	m.timeframes[key] = id
	return id, nil
}

func newRegistry(t *testing.T) *memorystore.Registry {
	t.Helper()
	reg, err := memorystore.NewRegistry("oanda", []string{"EUR/USD", "USD/JPY"}, []memorystore.TimeframeSpec{
		{Granularity: oanda.Granularity1Min, Label: "1m"},
		{Granularity: oanda.Granularity1D, Label: "1d"},
	})
	require.NoError(t, err)
	return reg
}

// go test -v --run TestSync
func TestSync(t *testing.T) {
	res := newMemResolver()
	reg := newRegistry(t)
	s := &Synchronizer{Resolver: res, Exchange: "oanda", Logger: zap.NewNop()}

	require.NoError(t, s.Sync(context.Background(), reg))

	assert.Equal(t, []string{"oanda"}, res.exchanges)
	for _, inst := range reg.Instruments() {
		assert.NotZero(t, inst.ID)
	}
	seen := map[uint]bool{}
	for _, tf := range reg.Timeframes() {
		assert.NotZero(t, tf.ID)
		assert.False(t, seen[tf.ID], "timeframe id reused")
		seen[tf.ID] = true
	}

	eur, _ := reg.Instrument("EUR/USD")
	key := memorystore.InstrumentNaturalKey{Exchange: "oanda", Symbol: "EUR/USD", NativeSymbol: "EUR_USD"}
	assert.Equal(t, res.instruments[key], eur.ID)

	// a second run over a fresh registry resolves the same ids
	again := newRegistry(t)
	require.NoError(t, s.Sync(context.Background(), again))
	tf1, _ := reg.Timeframe("USD/JPY", "1d")
	tf2, _ := again.Timeframe("USD/JPY", "1d")
	assert.Equal(t, tf1.ID, tf2.ID)
}

// go test -v --run TestSyncFailure
func TestSyncFailure(t *testing.T) {
	res := newMemResolver()
	res.failOn = "USD/JPY"
	s := &Synchronizer{Resolver: res, Exchange: "oanda", Logger: zap.NewNop()}

	err := s.Sync(context.Background(), newRegistry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USD/JPY")
}
