package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/useCases"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WebSocketBroadcaster implements Broadcaster interface for report updates.
type WebSocketBroadcaster struct {
	log      *slog.Logger
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	last     []byte
}

var _ useCases.Broadcaster = (*WebSocketBroadcaster)(nil)

func NewWebSocketBroadcaster(log *slog.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		log:      log.With(slog.String("component", "websocket.Broadcaster")),
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// BroadcastReport sends the report to every connected client. The latest
// report is also replayed to clients that connect later.
func (b *WebSocketBroadcaster) BroadcastReport(report *dto.ReportDTO) {
	msg, err := json.Marshal(report)
	if err != nil {
		b.log.Error("failed to marshal report", sl.Err(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = msg
	for c := range b.clients {
		b.write(c, msg)
	}
}

// Clients returns the number of connected clients
func (b *WebSocketBroadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// write must be called with mu held
func (b *WebSocketBroadcaster) write(c *websocket.Conn, msg []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
		b.log.Debug("websocket write error", sl.Err(err))
		c.Close()
		delete(b.clients, c)
	}
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", sl.Err(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		if b.last != nil {
			b.write(conn, b.last)
		}
		b.mu.Unlock()

		// read loop only detects closed connections
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
