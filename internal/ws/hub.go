// Package ws holds the websocket connections and routes room messages to
// the players they are addressed to.
package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/OktayBayram/nyx-game/internal/game"
)

// Hub maps player ids to live connections. It implements lobby.Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client // playerID -> client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// Deliver copies msgs into the send buffers of their recipients, in order.
// It never waits on a connection: a client whose buffer is full is dropped.
func (h *Hub) Deliver(msgs []game.Outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range msgs {
		data, err := Encode(msg.Event, msg.Payload)
		if err != nil {
			h.log.Error().Err(err).Str("event", msg.Event).Msg("encode")
			continue
		}
		for _, id := range msg.To {
			c, ok := h.clients[id]
			if !ok {
				continue
			}
			if msg.Event == game.EventKicked || msg.Event == game.EventRoomClosed {
				c.clearRoom(msg.Room)
			}
			h.push(c, data)
		}
	}
}

// Send delivers a single message to one player.
func (h *Hub) Send(playerID, event string, payload any) {
	h.Deliver([]game.Outbound{{To: []string{playerID}, Event: event, Payload: payload}})
}

// push must be called with h.mu held.
func (h *Hub) push(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// slow consumer; the read pump notices the closed socket
		h.log.Warn().Str("player", c.ID()).Msg("send buffer full, dropping connection")
		h.drop(c)
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *Client) {
	if h.clients[c.ID()] == c {
		delete(h.clients, c.ID())
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
	h.log.Debug().Str("player", c.ID()).Int("clients", len(h.clients)).Msg("registered")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
	h.log.Debug().Str("player", c.ID()).Int("clients", len(h.clients)).Msg("unregistered")
}

// Rebind moves c to playerID. It fails while another live connection holds
// that id.
func (h *Hub) Rebind(c *Client, playerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if other, ok := h.clients[playerID]; ok && other != c {
		return game.Errorf(game.CodeBadRequest, "Already connected elsewhere")
	}
	if h.clients[c.ID()] == c {
		delete(h.clients, c.ID())
	}
	c.setID(playerID)
	h.clients[playerID] = c
	return nil
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
