package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fxstream/internal/oanda/heartbeat"
	"fxstream/internal/oanda/memorystore"
	"fxstream/internal/oanda/sink"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Publish when the hub is not keeping up.
var ErrQueueFull = errors.New("broadcast queue full")

// Health is what /api/health reports on.
type Health interface {
	CheckLiveness(now time.Time) heartbeat.Liveness
	LastHeartbeat() (time.Time, bool)
}

// Message is the JSON frame pushed to websocket clients.
type Message struct {
	Type      string                    `json:"type"` // "snapshot" or "update"
	Completed bool                      `json:"completed,omitempty"`
	Candle    *memorystore.Candlestick  `json:"candle,omitempty"`
	Candles   []memorystore.Candlestick `json:"candles,omitempty"`
}

// Server exposes the latest live candles over HTTP and pushes every update to
// websocket clients.
type Server struct {
	addr   string
	health Health
	logger *zap.Logger
	engine *gin.Engine

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	clientCount atomic.Int32
	broadcast   chan sink.CandleEvent
	register    chan *Client
	unregister  chan *Client
	hubDone     chan struct{}

	latest      map[memorystore.TimeframeKey]memorystore.Candlestick
	latestMutex sync.RWMutex
}

func NewServer(addr string, health Health, debug bool, logger *zap.Logger) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		addr:       addr,
		health:     health,
		logger:     logger,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan sink.CandleEvent, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		hubDone:    make(chan struct{}),
		latest:     make(map[memorystore.TimeframeKey]memorystore.Candlestick),
	}

	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/candles", s.getCandles)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP and the hub until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.runHub(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("live candle server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("live candle server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Publish implements sink.Publisher. It never blocks the persistence worker.
func (s *Server) Publish(ev sink.CandleEvent) error {
	select {
	case s.broadcast <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// ClientCount is the number of connected websocket clients.
func (s *Server) ClientCount() int {
	return int(s.clientCount.Load())
}

// Latest returns the live candles, ordered by symbol then granularity.
func (s *Server) Latest(symbol, label string) []memorystore.Candlestick {
	s.latestMutex.RLock()
	out := make([]memorystore.Candlestick, 0, len(s.latest))
	for key, c := range s.latest {
		if symbol != "" && key.Symbol != symbol {
			continue
		}
		if label != "" && key.Label != label {
			continue
		}
		out = append(out, c)
	}
	s.latestMutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Granularity < out[j].Granularity
	})
	return out
}

func (s *Server) getHealth(c *gin.Context) {
	status := s.health.CheckLiveness(time.Now())

	body := gin.H{
		"status":      status.String(),
		"connections": s.ClientCount(),
	}
	if last, ok := s.health.LastHeartbeat(); ok {
		body["last_heartbeat"] = last
	}

	code := http.StatusOK
	if status == heartbeat.Stale {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

func (s *Server) getCandles(c *gin.Context) {
	c.JSON(http.StatusOK, s.Latest(c.Query("symbol"), c.Query("label")))
}
