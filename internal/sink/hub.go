package sink

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/gorilla/websocket"
)

const (
	_clientQueueSize = 64
	_pingInterval    = 30 * time.Second
	_readTimeout     = 90 * time.Second
	_writeTimeout    = 10 * time.Second
)

type hubMessage struct {
	Type  string            `json:"type"`
	Text  string            `json:"text"`
	Alert *model.AlertEvent `json:"alert,omitempty"`
}

type hubClient struct {
	conn *websocket.Conn
	out  chan hubMessage
}

// Hub broadcasts notifications to connected websocket clients. A client that
// can't keep up loses messages instead of blocking the broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*hubClient]struct{}
	mu       sync.RWMutex

	logger logger.Logger
}

func NewHub(logger logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
		logger:  logger,
	}
}

func (h *Hub) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	h.broadcast(hubMessage{Type: string(KindAlert), Text: FormatAlert(alert), Alert: &alert})
}

func (h *Hub) NotifyStatus(_ context.Context, text string) {
	h.broadcast(hubMessage{Type: string(KindStatus), Text: text})
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) broadcast(msg hubMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.out <- msg:
		default:
		}
	}
}

// ServeHTTP upgrades the request and holds the connection until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("%s: can't upgrade websocket connection", err)
		return
	}
	defer conn.Close()

	c := &hubClient{conn: conn, out: make(chan hubMessage, _clientQueueSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.write(c, done)

	_ = conn.SetReadDeadline(time.Now().Add(_readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(_readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
}

func (h *Hub) write(c *hubClient, done <-chan struct{}) {
	ping := time.NewTicker(_pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(_writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debugf("%s: can't write to websocket client", err)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(_writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
