package broadcast

import (
	"context"
	"net/http"

	"fxstream/internal/oanda/memorystore"
	"fxstream/internal/oanda/sink"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// runHub owns the client set. Slow clients are disconnected rather than
// allowed to block the loop.
func (s *Server) runHub(ctx context.Context) {
	defer close(s.hubDone)
	for {
		select {
		case <-ctx.Done():
			for client := range s.clients {
				s.dropClient(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Add(1)
			client.send <- Message{Type: "snapshot", Candles: s.Latest("", "")}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.dropClient(client)
			}

		case ev := <-s.broadcast:
			if !ev.Completed {
				s.storeLatest(ev.Candle)
			}

			candle := ev.Candle
			msg := Message{Type: "update", Completed: ev.Completed, Candle: &candle}
			for client := range s.clients {
				select {
				case client.send <- msg:
				default:
					s.logger.Warn("dropping slow websocket client")
					s.dropClient(client)
				}
			}
		}
	}
}

func (s *Server) dropClient(client *Client) {
	delete(s.clients, client)
	s.clientCount.Add(-1)
	close(client.send)
}

func (s *Server) storeLatest(c memorystore.Candlestick) {
	key := memorystore.TimeframeKey{Symbol: c.Symbol, Label: c.Label}

	s.latestMutex.Lock()
	s.latest[key] = c
	s.latestMutex.Unlock()
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		send: make(chan Message, 256),
	}

	select {
	case s.register <- client:
	case <-s.hubDone:
		conn.Close()
		return
	case <-c.Request.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

var _ sink.Publisher = (*Server)(nil)
