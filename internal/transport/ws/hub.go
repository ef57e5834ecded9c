package ws

import (
	"log"
	"sync"

	"quizer-server/internal/game"

	"github.com/gorilla/websocket"
)

// Hub tracks live websocket connections by id and implements game.Sender.
// Each connection gets a dedicated writer goroutine fed by a buffered
// channel, so writes from concurrent rooms never interleave on the socket.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
}

type client struct {
	conn *websocket.Conn
	send chan game.Envelope
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Send delivers an envelope to one connection. Unknown or closed
// connections are dropped silently; a full send buffer drops the message
// rather than blocking the engine.
func (h *Hub) Send(connID string, env game.Envelope) {
	// The read lock is held across the enqueue so remove's close of the
	// channel (under the write lock) cannot interleave with a send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case c.send <- env:
	default:
		log.Printf("dropping %s message to slow connection %s", env.Type, connID)
	}
}

// add registers a connection and starts its writer goroutine.
func (h *Hub) add(connID string, conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan game.Envelope, 32)}

	h.mu.Lock()
	h.conns[connID] = c
	h.mu.Unlock()

	go func() {
		for env := range c.send {
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("ws write to %s: %v", connID, err)
				return
			}
		}
	}()
	return c
}

// remove unregisters a connection and stops its writer.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()
	if ok {
		c.once.Do(func() { close(c.send) })
	}
}
