// Package live pushes refreshed device collections to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 8
)

// Message is the envelope written to subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks subscribers and fans messages out to them. Slow subscribers are
// dropped rather than blocking a broadcast.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}

	log zerolog.Logger
}

// NewHub returns a Hub; call Run before serving connections.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 1),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		log:        log,
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, dropping")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes payload under msgType and queues it for every subscriber.
// It does not block when a previous broadcast is still pending; the older
// message is replaced.
func (h *Hub) Publish(msgType string, payload any) error {
	b, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	for {
		select {
		case h.broadcast <- b:
			return nil
		default:
		}
		select {
		case <-h.broadcast:
		default:
		}
	}
}

// Serve upgrades the request and streams messages until the peer leaves.
// initial, when non-nil, is sent before any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial *Message) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if initial != nil {
		if b, err := json.Marshal(initial); err == nil {
			c.send <- b
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	case <-r.Context().Done():
		conn.Close()
		return r.Context().Err()
	}

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump only watches for close frames and pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
