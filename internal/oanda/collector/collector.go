package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fxstream/config"
	"fxstream/internal/oanda/aggregator"
	"fxstream/internal/oanda/broadcast"
	"fxstream/internal/oanda/heartbeat"
	"fxstream/internal/oanda/memorystore"
	"fxstream/internal/oanda/sink"
	"fxstream/internal/oanda/snapshot"
	"fxstream/internal/oanda/stream"
	"fxstream/pkg/oanda"
	"fxstream/pkg/storage/kafka"
	"fxstream/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsInterval = 30 * time.Second

// Store is everything the pipeline needs from persistence.
type Store interface {
	sink.Store
	snapshot.Resolver
}

// Source delivers stream events in arrival order until it fails or ctx ends.
type Source interface {
	Stream(ctx context.Context, instruments []string, out chan<- oanda.Event) error
}

// Collector owns one aggregation pipeline: registry, engine, heartbeat
// monitor, persistence worker and the optional live candle server.
type Collector struct {
	cfg    *config.Config
	logger *zap.Logger

	store    Store
	source   Source
	registry *memorystore.Registry
	engine   *aggregator.Engine
	monitor  *heartbeat.Monitor

	server     *broadcast.Server
	publishers []sink.Publisher
	closers    []func()
}

// New builds the in-memory side of the pipeline. Nothing connects until Run.
func New(cfg *config.Config, store Store, source Source, logger *zap.Logger, publishers ...sink.Publisher) (*Collector, error) {
	specs := make([]memorystore.TimeframeSpec, 0, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		specs = append(specs, memorystore.TimeframeSpec{Granularity: oanda.Granularity(tf.Minutes), Label: tf.Label})
	}

	registry, err := memorystore.NewRegistry(cfg.Oanda.Exchange, cfg.Oanda.Instruments, specs)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	loc, err := cfg.Aggregation.TimeLocation()
	if err != nil {
		return nil, err
	}

	return &Collector{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		source:     source,
		registry:   registry,
		engine:     aggregator.New(registry, loc),
		monitor:    heartbeat.NewMonitor(cfg.Heartbeat.Timeout),
		publishers: publishers,
	}, nil
}

// Build wires the production pipeline: Postgres store, OANDA stream client
// and whichever publishers are enabled.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Collector, error) {
	if err := cfg.ResolveSecrets(ctx); err != nil {
		return nil, err
	}

	pg, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Environment, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	source := oanda.NewStreamClient(cfg.Oanda.StreamURL, cfg.Oanda.AccountID, cfg.Oanda.APIKey, cfg.Oanda.DialTimeout)

	var publishers []sink.Publisher
	var closers []func()

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Oanda.Exchange, logger)
		if err != nil {
			pg.Close()
			return nil, err
		}
		publishers = append(publishers, producer)
		closers = append(closers, producer.Close)
	}

	c, err := New(cfg, pg, source, logger, publishers...)
	if err != nil {
		pg.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		c.server = broadcast.NewServer(cfg.Server.Addr, c.monitor, cfg.Log.Level == "debug", logger)
		c.publishers = append(c.publishers, c.server)
	}

	c.closers = append(closers, func() {
		if err := pg.Close(); err != nil {
			logger.Warn("closing postgres", zap.Error(err))
		}
	})
	return c, nil
}

func (c *Collector) Registry() *memorystore.Registry {
	return c.registry
}

func (c *Collector) Monitor() *heartbeat.Monitor {
	return c.monitor
}

// Run synchronizes the registry, then streams until ctx is cancelled or a
// fatal condition occurs. A *heartbeat.FatalCondition is returned for a stale
// or closed feed; nil means a clean shutdown.
func (c *Collector) Run(ctx context.Context) error {
	defer c.close()

	syncer := &snapshot.Synchronizer{
		Resolver: c.store,
		Exchange: c.cfg.Oanda.Exchange,
		Timeout:  c.cfg.Sink.WriteTimeout,
		Logger:   c.logger,
	}
	if err := syncer.Sync(ctx, c.registry); err != nil {
		return fmt.Errorf("startup synchronization: %w", err)
	}

	worker, err := sink.NewWorker(c.store, sink.Options{
		Exchange:     c.cfg.Oanda.Exchange,
		QueueSize:    c.cfg.Sink.QueueSize,
		Policy:       c.cfg.Sink.Policy,
		WriteTimeout: c.cfg.Sink.WriteTimeout,
	}, c.logger, c.publishers...)
	if err != nil {
		return err
	}
	worker.Start()
	// every producer below has returned by the time this runs
	defer worker.Close()

	handler := stream.NewHandler(c.engine, c.monitor, worker, c.cfg.Sink.StoreTicks, c.logger)
	events := make(chan oanda.Event, 1024)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		err := c.source.Stream(gctx, c.registry.Symbols(), events)
		if gctx.Err() != nil {
			return nil
		}
		return &heartbeat.FatalCondition{Reason: "price stream ended", At: time.Now(), Err: err}
	})

	// the handler drains whatever was read before the stream stopped
	g.Go(func() error {
		handler.Run(context.WithoutCancel(gctx), events)
		return nil
	})

	g.Go(func() error {
		if fc := c.monitor.Run(gctx, c.cfg.Heartbeat.CheckInterval, time.Now, c.logger); fc != nil {
			return fc
		}
		return nil
	})

	g.Go(func() error {
		c.logStats(gctx, handler, worker)
		return nil
	})

	if c.server != nil {
		g.Go(func() error {
			return c.server.Run(gctx)
		})
	}

	c.logger.Info("collector started",
		zap.Strings("instruments", c.registry.Symbols()),
		zap.Int("timeframes", len(c.registry.Timeframes())))

	err = g.Wait()

	var fc *heartbeat.FatalCondition
	if errors.As(err, &fc) {
		c.logger.Error("fatal condition", zap.String("reason", fc.Reason), zap.Error(fc.Err))
	}
	return err
}

func (c *Collector) logStats(ctx context.Context, handler *stream.Handler, worker *sink.Worker) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := handler.Stats()
			c.logger.Info("stream stats",
				zap.Uint64("heartbeats", s.Heartbeats),
				zap.Uint64("ticks", s.Ticks),
				zap.Uint64("rollovers", s.Rollovers),
				zap.Uint64("unknown", s.Unknown),
				zap.Uint64("malformed", s.Malformed),
				zap.Int("pending_writes", worker.Pending()),
				zap.Uint64("dropped_writes", worker.Dropped()),
				zap.Uint64("failed_writes", worker.Failed()))
		}
	}
}

func (c *Collector) close() {
	for _, fn := range c.closers {
		fn()
	}
}
