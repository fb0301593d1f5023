package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ConnListener is told about every connection the hub accepts and loses.
// *Presence implements it.
type ConnListener interface {
	Connected(userID, connID string)
	Disconnected(userID, connID string)
}

// Hub owns the set of open clients.
//
// Register and unregister requests are handled by the single Run goroutine,
// which is the only writer of the clients map and the only closer of a
// client's send channel. Broadcast and SendTo read the map under a read lock
// and never block: a client whose buffer is full misses the message.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	listener ConnListener

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// SetListener installs l. Call it before Run.
func (h *Hub) SetListener(l ConnListener) {
	h.listener = l
}

// Run processes registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			total := len(h.clients)
			h.mu.Unlock()

			h.log.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Int("total_clients", total).Msg("websocket client connected")
			if h.listener != nil {
				h.listener.Connected(c.UserID, c.ID)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c.ID]
			if ok {
				delete(h.clients, c.ID)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.log.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Int("total_clients", total).Msg("websocket client disconnected")
				if h.listener != nil {
					h.listener.Disconnected(c.UserID, c.ID)
				}
			}

		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Attach wraps conn in a Client for userID (may be empty), registers it and
// starts its pumps. It returns once the client is registered.
func (h *Hub) Attach(conn *websocket.Conn, userID string) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		log:    h.log,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return c
	}

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues e on every client.
func (h *Hub) Broadcast(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("event", e.Name).Msg("encoding broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.queue(payload)
	}
}

// SendTo queues e on the client with connID.
func (h *Hub) SendTo(connID string, e Event) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("event", e.Name).Msg("encoding event")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	return c.queue(payload)
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
