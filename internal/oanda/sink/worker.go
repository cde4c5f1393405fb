package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fxstream/internal/oanda/memorystore"
	"fxstream/pkg/oanda"

	"go.uber.org/zap"
)

// Store is the durable side of the pipeline. All writes are natural-key
// upserts except InsertCompletedCandle and InsertTick.
type Store interface {
	UpsertLiveCandle(ctx context.Context, c memorystore.Candlestick) error
	InsertCompletedCandle(ctx context.Context, c memorystore.Candlestick) error
	UpdateHeartbeatRecord(ctx context.Context, exchange string, ts time.Time) error
	InsertTick(ctx context.Context, exchange string, t oanda.Tick) error
}

// CandleEvent is what publishers receive after the store accepted a candle.
type CandleEvent struct {
	Completed bool                    `json:"completed"`
	Candle    memorystore.Candlestick `json:"candle"`
}

// Publisher fans candles out beyond the store (websocket clients, Kafka).
type Publisher interface {
	Publish(ev CandleEvent) error
}

// Queue policies for the live queue. Completed candles always block.
const (
	PolicyBlock      = "block"
	PolicyDropOldest = "drop_oldest"
)

type jobKind int

const (
	jobLive jobKind = iota
	jobCompleted
	jobHeartbeat
	jobTick
)

type job struct {
	kind      jobKind
	candle    memorystore.Candlestick
	heartbeat time.Time
	tick      oanda.Tick
}

type Options struct {
	Exchange     string
	QueueSize    int
	Policy       string
	WriteTimeout time.Duration
}

// Worker owns two bounded queues drained by a single goroutine. The completed
// queue is served first and never drops; the live queue carries idempotent
// writes (live candles, heartbeat record, tick archive) and follows Policy
// when full.
type Worker struct {
	store      Store
	publishers []Publisher
	opts       Options
	logger     *zap.Logger

	completed chan job
	live      chan job

	dropped   atomic.Uint64
	failed    atomic.Uint64
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func NewWorker(store Store, opts Options, logger *zap.Logger, publishers ...Publisher) (*Worker, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	switch opts.Policy {
	case "":
		opts.Policy = PolicyBlock
	case PolicyBlock, PolicyDropOldest:
	default:
		return nil, fmt.Errorf("unknown queue policy: %q", opts.Policy)
	}

	return &Worker{
		store:      store,
		publishers: publishers,
		opts:       opts,
		logger:     logger,
		completed:  make(chan job, opts.QueueSize),
		live:       make(chan job, opts.QueueSize),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	w.startOnce.Do(func() { go w.run() })
}

// Close stops accepting work and waits until both queues are drained.
// Producers must have stopped enqueueing before Close is called.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.completed)
		close(w.live)
	})
	w.Start()
	<-w.done
}

func (w *Worker) EnqueueLive(c memorystore.Candlestick) {
	w.enqueueLive(job{kind: jobLive, candle: c})
}

// EnqueueCompleted blocks while the completed queue is full.
func (w *Worker) EnqueueCompleted(c memorystore.Candlestick) {
	w.completed <- job{kind: jobCompleted, candle: c}
}

func (w *Worker) EnqueueHeartbeat(ts time.Time) {
	w.enqueueLive(job{kind: jobHeartbeat, heartbeat: ts})
}

func (w *Worker) EnqueueTick(t oanda.Tick) {
	w.enqueueLive(job{kind: jobTick, tick: t})
}

// Dropped counts live jobs discarded by the drop_oldest policy.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

// Failed counts store writes that returned an error.
func (w *Worker) Failed() uint64 {
	return w.failed.Load()
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	return len(w.completed) + len(w.live)
}

func (w *Worker) enqueueLive(j job) {
	if w.opts.Policy == PolicyBlock {
		w.live <- j
		return
	}

	for {
		select {
		case w.live <- j:
			return
		default:
		}
		// full: evict the oldest entry and retry
		select {
		case <-w.live:
			w.dropped.Add(1)
		default:
		}
	}
}

func (w *Worker) run() {
	defer close(w.done)

	completed, live := w.completed, w.live
	for completed != nil || live != nil {
		if completed != nil {
			select {
			case j, ok := <-completed:
				if !ok {
					completed = nil
				} else {
					w.handle(j)
				}
				continue
			default:
			}
		}

		select {
		case j, ok := <-completed:
			if !ok {
				completed = nil
				continue
			}
			w.handle(j)
		case j, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			w.handle(j)
		}
	}
}

func (w *Worker) handle(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.WriteTimeout)
	defer cancel()

	switch j.kind {
	case jobLive:
		if err := w.store.UpsertLiveCandle(ctx, j.candle); err != nil {
			// the next tick upserts the same row again
			w.failed.Add(1)
			w.logger.Warn("failed to upsert live candle", candleFields(j.candle, err)...)
			return
		}
		w.publish(CandleEvent{Candle: j.candle})

	case jobCompleted:
		if err := w.store.InsertCompletedCandle(ctx, j.candle); err != nil {
			w.failed.Add(1)
			w.logger.Error("completed candle not stored", candleFields(j.candle, err)...)
			return
		}
		w.publish(CandleEvent{Completed: true, Candle: j.candle})

	case jobHeartbeat:
		if err := w.store.UpdateHeartbeatRecord(ctx, w.opts.Exchange, j.heartbeat); err != nil {
			w.failed.Add(1)
			w.logger.Warn("failed to update heartbeat record", zap.Time("heartbeat", j.heartbeat), zap.Error(err))
		}

	case jobTick:
		if err := w.store.InsertTick(ctx, w.opts.Exchange, j.tick); err != nil {
			w.failed.Add(1)
			w.logger.Warn("failed to archive tick", zap.String("symbol", j.tick.Symbol), zap.Error(err))
		}
	}
}

func (w *Worker) publish(ev CandleEvent) {
	for _, p := range w.publishers {
		if err := p.Publish(ev); err != nil {
			w.logger.Warn("failed to publish candle",
				zap.String("symbol", ev.Candle.Symbol),
				zap.String("timeframe", ev.Candle.Label),
				zap.Bool("completed", ev.Completed),
				zap.Error(err))
		}
	}
}

func candleFields(c memorystore.Candlestick, err error) []zap.Field {
	return []zap.Field{
		zap.String("symbol", c.Symbol),
		zap.String("timeframe", c.Label),
		zap.Time("start", c.Start),
		zap.Error(err),
	}
}
