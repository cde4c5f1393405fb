package stream

import (
	"context"
	"sync/atomic"
	"time"

	"fxstream/internal/oanda/aggregator"
	"fxstream/internal/oanda/heartbeat"
	"fxstream/internal/oanda/memorystore"
	"fxstream/pkg/oanda"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sink receives the side effects of event processing. Calls never wait for
// the store, only for queue space.
type Sink interface {
	EnqueueLive(c memorystore.Candlestick)
	EnqueueCompleted(c memorystore.Candlestick)
	EnqueueHeartbeat(ts time.Time)
	EnqueueTick(t oanda.Tick)
}

// Stats counts processed events by kind.
type Stats struct {
	Heartbeats uint64
	Ticks      uint64
	Unknown    uint64 // ticks for unregistered symbols
	Malformed  uint64
	Ignored    uint64
	Rollovers  uint64
}

// Handler dispatches stream events in arrival order. HandleEvent must be
// called from a single goroutine.
type Handler struct {
	engine     *aggregator.Engine
	monitor    *heartbeat.Monitor
	sink       Sink
	storeTicks bool
	logger     *zap.Logger

	// keeps a flood of bad records from flooding the log
	warnLimiter *rate.Limiter

	heartbeats atomic.Uint64
	ticks      atomic.Uint64
	unknown    atomic.Uint64
	malformed  atomic.Uint64
	ignored    atomic.Uint64
	rollovers  atomic.Uint64
}

func NewHandler(engine *aggregator.Engine, monitor *heartbeat.Monitor, sink Sink, storeTicks bool, logger *zap.Logger) *Handler {
	return &Handler{
		engine:      engine,
		monitor:     monitor,
		sink:        sink,
		storeTicks:  storeTicks,
		logger:      logger,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
}

// Run consumes events until the channel is closed or ctx is done.
func (h *Handler) Run(ctx context.Context, events <-chan oanda.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.HandleEvent(ev)
		}
	}
}

// HandleEvent routes one event.
func (h *Handler) HandleEvent(ev oanda.Event) {
	switch ev.Kind {
	case oanda.KindHeartbeat:
		h.heartbeats.Add(1)
		h.monitor.OnHeartbeat(ev.Time)
		h.sink.EnqueueHeartbeat(ev.Time)
		h.logger.Debug("heartbeat", zap.Time("time", ev.Time))

	case oanda.KindPrice:
		h.handleTick(ev.Tick)

	case oanda.KindIgnored:
		h.ignored.Add(1)

	default:
		h.malformed.Add(1)
		if h.warnLimiter.Allow() {
			h.logger.Warn("dropping malformed record", zap.String("raw", truncate(ev.Raw, 256)), zap.Error(ev.Err))
		}
	}
}

func (h *Handler) handleTick(t oanda.Tick) {
	updates, ok := h.engine.ApplyTick(t)
	if !ok {
		h.unknown.Add(1)
		if h.warnLimiter.Allow() {
			h.logger.Warn("tick for unregistered instrument", zap.String("symbol", t.Symbol))
		}
		return
	}
	h.ticks.Add(1)

	if h.storeTicks {
		h.sink.EnqueueTick(t)
	}

	for _, u := range updates {
		if u.Completed != nil {
			h.rollovers.Add(1)
			h.sink.EnqueueCompleted(*u.Completed)
			h.logger.Debug("candle completed",
				zap.String("symbol", u.Completed.Symbol),
				zap.String("timeframe", u.Completed.Label),
				zap.Time("start", u.Completed.Start))
		}
		h.sink.EnqueueLive(u.Updated)
	}
}

// Stats returns a snapshot of the counters; safe to call from any goroutine.
func (h *Handler) Stats() Stats {
	return Stats{
		Heartbeats: h.heartbeats.Load(),
		Ticks:      h.ticks.Load(),
		Unknown:    h.unknown.Load(),
		Malformed:  h.malformed.Load(),
		Ignored:    h.ignored.Load(),
		Rollovers:  h.rollovers.Load(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
