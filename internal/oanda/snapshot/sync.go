package snapshot

import (
	"context"
	"fmt"
	"time"

	"fxstream/internal/oanda/memorystore"

	"go.uber.org/zap"
)

// Resolver maps natural keys to durable identifiers, creating rows as needed.
type Resolver interface {
	EnsureExchange(ctx context.Context, name string) error
	ResolveOrCreateInstrumentID(ctx context.Context, key memorystore.InstrumentNaturalKey) (uint, error)
	ResolveOrCreateTimeframeID(ctx context.Context, key memorystore.TimeframeNaturalKey) (uint, error)
}

type Synchronizer struct {
	Resolver Resolver
	Exchange string
	Timeout  time.Duration // per call
	Logger   *zap.Logger
}

// Sync gives every registry entry its durable identifier. It must complete
// before streaming starts; any failure aborts startup.
func (s *Synchronizer) Sync(ctx context.Context, reg *memorystore.Registry) error {
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.Resolver.EnsureExchange(ctx, s.Exchange)
	}); err != nil {
		return fmt.Errorf("ensure exchange %s: %w", s.Exchange, err)
	}

	for _, inst := range reg.Instruments() {
		key := memorystore.InstrumentNaturalKey{
			Exchange:     inst.Exchange,
			Symbol:       inst.Symbol,
			NativeSymbol: inst.NativeSymbol,
		}

		var id uint
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			id, err = s.Resolver.ResolveOrCreateInstrumentID(ctx, key)
			return err
		})
		if err != nil {
			return fmt.Errorf("resolve instrument %s: %w", inst.Symbol, err)
		}
		inst.ID = id
	}

	for _, tf := range reg.Timeframes() {
		key := memorystore.TimeframeNaturalKey{
			InstrumentID: tf.Instrument().ID,
			Minutes:      int(tf.Granularity),
			Label:        tf.Label,
		}

		var id uint
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			id, err = s.Resolver.ResolveOrCreateTimeframeID(ctx, key)
			return err
		})
		if err != nil {
			return fmt.Errorf("resolve timeframe %s %s: %w", tf.Symbol, tf.Label, err)
		}
		tf.ID = id
	}

	s.Logger.Info("registry synchronized",
		zap.Int("instruments", len(reg.Instruments())),
		zap.Int("timeframes", len(reg.Timeframes())))
	return nil
}

func (s *Synchronizer) call(ctx context.Context, fn func(context.Context) error) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
